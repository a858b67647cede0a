package worker

import "context"

// Handler is a function that processes a delivery.
type Handler func(ctx context.Context, d *Delivery) error

// Middleware is a function that wraps a handler to add functionality.
type Middleware func(Handler) Handler
