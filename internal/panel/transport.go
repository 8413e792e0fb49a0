package panel

import (
	"context"

	"import_panel/internal/channel"
	"import_panel/internal/models"
)

// Channel is the event channel as the panel uses it.
type Channel interface {
	Events() <-chan models.Frame
	Emit(event string, data any) error
	Request(event string, data any) (Call, error)
	Close() error
}

// Call is an in-flight correlated request; its reply arrives on Events()
// with RequestID equal to ID().
type Call interface {
	ID() string
	Cancel()
}

// DialFunc opens the channel for one panel.
type DialFunc func(ctx context.Context) (Channel, error)

// connChannel adapts *channel.Conn to Channel.
type connChannel struct {
	*channel.Conn
}

func (c connChannel) Request(event string, data any) (Call, error) {
	f, err := c.Conn.Request(event, data)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// DialChannel returns a DialFunc backed by channel.Dial.
func DialChannel(opts channel.Options) DialFunc {
	return func(ctx context.Context) (Channel, error) {
		conn, err := channel.Dial(ctx, opts)
		if err != nil {
			return nil, err
		}
		return connChannel{Conn: conn}, nil
	}
}
