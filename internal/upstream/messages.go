package upstream

import (
	"context"

	"github.com/conneroisu/widgetsync/internal/channel"
	"github.com/conneroisu/widgetsync/internal/codec"
)

// Messages posts entries to the host's feedback feed.
type Messages struct {
	c *Controller
}

// Post sends text with an arbitrary status such as "info".
func (m *Messages) Post(ctx context.Context, status, text string) error {
	payload, err := codec.Encode(text)
	if err != nil {
		return err
	}
	return m.c.conn.Emit(ctx, channel.MessagePrefix+status, payload)
}

func (m *Messages) Success(ctx context.Context, text string) error {
	return m.Post(ctx, "success", text)
}

func (m *Messages) Error(ctx context.Context, text string) error {
	return m.Post(ctx, "error", text)
}

func (m *Messages) Info(ctx context.Context, text string) error {
	return m.Post(ctx, "info", text)
}

func (m *Messages) Warning(ctx context.Context, text string) error {
	return m.Post(ctx, "warning", text)
}

func (m *Messages) Loading(ctx context.Context, text string) error {
	return m.Post(ctx, "loading", text)
}
