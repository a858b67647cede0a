package worker

import "context"

// Listener provides hooks into the worker's lifecycle for logging, metrics, etc.
type Listener struct {
	// OnStart is called when the worker starts.
	OnStart func(ctx context.Context)
	// OnExit is called when the worker exits.
	OnExit func(ctx context.Context)
	// OnMessageStart is called when a delivery is decoded.
	OnMessageStart func(ctx context.Context, d *Delivery)
	// OnMessageFinish is called when a delivery has been processed.
	OnMessageFinish func(ctx context.Context, d *Delivery, err error)
	// OnError is called when an error occurs. d is nil for decode failures.
	OnError func(ctx context.Context, d *Delivery, err error)
}
