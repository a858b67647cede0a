package worker

import (
	"context"
	"errors"
)

// RetryDecision defines whether a message should be retried or Nacked.
type RetryDecision struct {
	Retry bool
	Nack  bool
}

// RetryPolicy defines a policy for retrying failed messages.
type RetryPolicy interface {
	OnError(ctx context.Context, d *Delivery, err error) RetryDecision
}

// NoRetry is a retry policy that never retries.
type NoRetry struct{}

// OnError always returns a decision to not retry and to Nack the message.
func (NoRetry) OnError(ctx context.Context, d *Delivery, err error) RetryDecision {
	return RetryDecision{Retry: false, Nack: true}
}

// ErrPermanent marks handler errors that redelivery cannot fix.
var ErrPermanent = errors.New("permanent failure")

// DropPermanent acks deliveries that failed to decode or returned
// ErrPermanent, and nacks everything else.
type DropPermanent struct{}

func (DropPermanent) OnError(ctx context.Context, d *Delivery, err error) RetryDecision {
	if d == nil || errors.Is(err, ErrPermanent) {
		return RetryDecision{}
	}
	return RetryDecision{Retry: true, Nack: true}
}
