// Package payment models the payment method selected on a tab and the
// third-party authorization step that precedes sale confirmation for
// external providers.
package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MethodKind enumerates the payment method variants. Checkout routing
// switches exhaustively on this.
type MethodKind string

const (
	KindCash       MethodKind = "cash"
	KindCard       MethodKind = "card"
	KindUPI        MethodKind = "upi"
	KindThirdParty MethodKind = "third_party"
)

// Method is the payment method selected on a tab. Provider is only set for
// third-party methods.
type Method struct {
	Kind     MethodKind
	Provider string
}

// Cash is the default method on a fresh tab.
func Cash() Method { return Method{Kind: KindCash} }

// ThirdParty builds a third-party method for the named provider.
func ThirdParty(provider string) Method {
	return Method{Kind: KindThirdParty, Provider: provider}
}

// RequiresAuthorization reports whether checkout must route through the
// provider authorization step before confirmation.
func (m Method) RequiresAuthorization() bool {
	return m.Kind == KindThirdParty
}

// ErrAuthorizationTimeout is returned when the provider does not answer
// within the configured deadline.
var ErrAuthorizationTimeout = errors.New("payment authorization timed out")

// Authorization is the provider's answer to an authorization request.
type Authorization struct {
	Provider      string
	TransactionID string
	Status        string
	AuthorizedAt  time.Time
}

// Authorizer runs the third-party authorization step. Implementations must
// honour context cancellation: closing the checkout dialog cancels the
// in-flight authorization.
type Authorizer interface {
	Authorize(ctx context.Context, provider string, amount decimal.Decimal) (*Authorization, error)
}

// Simulator is a fixed-delay Authorizer standing in for a real provider
// integration. It always succeeds after Delay unless the context is
// cancelled first or Timeout elapses.
type Simulator struct {
	Delay   time.Duration
	Timeout time.Duration
	now     func() time.Time
}

// NewSimulator returns a Simulator with the given fixed delay and an upper
// bound on how long an authorization may take.
func NewSimulator(delay, timeout time.Duration) *Simulator {
	return &Simulator{Delay: delay, Timeout: timeout, now: time.Now}
}

// Authorize waits the configured delay and synthesizes a successful
// authorization with a fresh transaction id.
func (s *Simulator) Authorize(ctx context.Context, provider string, _ decimal.Decimal) (*Authorization, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, s.Timeout, ErrAuthorizationTimeout)
		defer cancel()
	}

	timer := time.NewTimer(s.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		if errors.Is(context.Cause(ctx), ErrAuthorizationTimeout) {
			return nil, ErrAuthorizationTimeout
		}
		return nil, ctx.Err()
	case <-timer.C:
	}

	return &Authorization{
		Provider:      provider,
		TransactionID: uuid.New().String(),
		Status:        "authorized",
		AuthorizedAt:  s.now(),
	}, nil
}
