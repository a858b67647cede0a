package worker

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// MiddlewareFromWatermill adapts a Watermill handler middleware, such as
// middleware.Timeout or middleware.Recoverer, to a worker Middleware.
func MiddlewareFromWatermill(m message.HandlerMiddleware) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, d *Delivery) error {
			msg := message.NewMessage(watermill.NewUUID(), message.Payload(d.Payload))
			msg.SetContext(ctx)
			if d.Metadata != nil {
				msg.Metadata = message.Metadata{}
				for key, value := range d.Metadata {
					msg.Metadata[key] = value
				}
			}
			wrapped := m(func(msg *message.Message) ([]*message.Message, error) {
				return nil, next(msg.Context(), d)
			})
			_, err := wrapped(msg)
			return err
		}
	}
}
