// Package upstream is the application-logic side of the sync channel. It
// drives widgets on a host by command, pulls their values with #get and
// subscribes to their events.
package upstream

import (
	"context"
	"time"

	"github.com/conneroisu/widgetsync/internal/channel"
	"github.com/conneroisu/widgetsync/internal/codec"
	"github.com/conneroisu/widgetsync/internal/errors"
	"github.com/conneroisu/widgetsync/internal/transport"
)

// DefaultTimeout bounds #get requests when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Conn is the connection a Controller talks through. *transport.Client
// satisfies it.
type Conn interface {
	Emit(ctx context.Context, name string, payload []byte) error
	Request(ctx context.Context, name string, payload []byte) ([]byte, error)
	On(name string, h transport.EventHandler) func()
}

// Value is an event payload handed to subscribers. Err is set when the
// value had to be pulled from the host and the pull failed.
type Value struct {
	Event   string
	Payload []byte
	Err     error
}

// Decode returns the payload as a canonical value.
func (v Value) Decode() (any, error) {
	if v.Err != nil {
		return nil, v.Err
	}
	return codec.Decode(v.Payload)
}

// Into decodes the payload into out.
func (v Value) Into(out any) error {
	if v.Err != nil {
		return v.Err
	}
	return codec.DecodeInto(v.Payload, out)
}

// Controller drives widgets on a widget host.
type Controller struct {
	conn    Conn
	timeout time.Duration

	Cache    *Cache
	Messages *Messages
}

// New returns a controller. A zero timeout means DefaultTimeout.
func New(conn Conn, timeout time.Duration) *Controller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Controller{conn: conn, timeout: timeout}
	c.Cache = &Cache{c: c}
	c.Messages = &Messages{c: c}
	return c
}

// Command sends id#suffix with v as payload.
func (c *Controller) Command(ctx context.Context, id, suffix string, v any) error {
	if err := channel.ValidateID(id); err != nil {
		return err
	}
	payload, err := codec.Encode(v)
	if err != nil {
		return err
	}
	return c.conn.Emit(ctx, channel.EventName(id, suffix), payload)
}

// Get pulls the current value of a widget into out.
func (c *Controller) Get(ctx context.Context, id string, out any) error {
	return c.GetSuffix(ctx, id, channel.SuffixGet, out)
}

// GetSuffix issues a request-style event such as plot's get_layout. A nil
// out discards the response.
func (c *Controller) GetSuffix(ctx context.Context, id, suffix string, out any) error {
	if err := channel.ValidateID(id); err != nil {
		return err
	}
	resp, err := c.request(ctx, channel.EventName(id, suffix), nil)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := codec.DecodeInto(resp, out); err != nil {
		return withWidget(err, id)
	}
	return nil
}

// Value pulls the current value of a widget as a canonical value.
func (c *Controller) Value(ctx context.Context, id string) (any, error) {
	resp, err := c.request(ctx, channel.EventName(id, channel.SuffixGet), nil)
	if err != nil {
		return nil, err
	}
	return codec.Decode(resp)
}

// Subscribe calls fn for every id#suffix event the host emits. The
// returned func unsubscribes.
func (c *Controller) Subscribe(id, suffix string, fn func(ctx context.Context, v Value)) func() {
	name := channel.EventName(id, suffix)
	return c.conn.On(name, func(event string, payload []byte) {
		fn(context.Background(), Value{Event: event, Payload: payload})
	})
}

func (c *Controller) request(ctx context.Context, name string, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.conn.Request(ctx, name, payload)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.NewTransportError(errors.ErrCodeTimeout,
				"no response before deadline", err).WithEvent(name)
		}
		return nil, err
	}
	return resp, nil
}

func withWidget(err error, id string) error {
	var se *errors.SyncError
	if errors.As(err, &se) {
		cp := *se
		return cp.WithWidget(id)
	}
	return err
}
