package page

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/conneroisu/widgetsync/internal/channel"
	"github.com/conneroisu/widgetsync/internal/codec"
	"github.com/conneroisu/widgetsync/internal/errors"
	"github.com/conneroisu/widgetsync/internal/store"
)

// CacheKeyPrefix namespaces page cache entries. Widget ids cannot contain
// '#', so these keys never collide with widget state.
const CacheKeyPrefix = "cache#"

// Message statuses accepted on "message.<status>".
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusInfo    = "info"
	StatusWarning = "warning"
	StatusLoading = "loading"
)

// Statuses lists every message status.
var Statuses = []string{StatusSuccess, StatusError, StatusInfo, StatusWarning, StatusLoading}

// CacheEntry is the payload of a "cache_save" event.
type CacheEntry struct {
	Key   string `msgpack:"key"`
	Value any    `msgpack:"value"`
}

func (p *Page) handleCacheSave(ctx context.Context, payload []byte, ack channel.AckFunc) error {
	var entry CacheEntry
	if err := codec.DecodeInto(payload, &entry); err != nil {
		return err
	}
	if entry.Key == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidValue, "cache key must not be empty").
			WithEvent(channel.EventCacheSave)
	}
	return p.SaveCache(ctx, entry.Key, entry.Value)
}

func (p *Page) handleCacheLoad(ctx context.Context, payload []byte, ack channel.AckFunc) error {
	if ack == nil {
		return errors.NewChannelError(errors.ErrCodeMissingAck, "request has no acknowledgement").
			WithEvent(channel.EventCacheLoad)
	}

	var key string
	if err := codec.DecodeInto(payload, &key); err != nil {
		return err
	}

	v, _, err := p.LoadCache(ctx, key)
	if err != nil {
		return err
	}
	resp, err := codec.Encode(v)
	if err != nil {
		return err
	}
	return ack(resp)
}

// SaveCache writes an arbitrary value under key in the page cache.
func (p *Page) SaveCache(ctx context.Context, key string, v any) error {
	return store.SaveJSON(ctx, p.store, CacheKeyPrefix+key, v)
}

// LoadCache reads a value written by SaveCache. A miss is (nil, false, nil).
// Whole JSON numbers come back as int64 so values keep their wire encoding.
func (p *Page) LoadCache(ctx context.Context, key string) (any, bool, error) {
	raw, found, err := p.store.Get(ctx, CacheKeyPrefix+key)
	if err != nil || !found {
		return nil, false, err
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, true, errors.NewStoreError(errors.ErrCodeCacheMalformed, "malformed cache entry", err).
			WithContext("key", key)
	}
	return store.Normalize(v), true, nil
}

// Message is one entry of the feedback feed.
type Message struct {
	Status string    `json:"status"`
	Text   string    `json:"text"`
	Time   time.Time `json:"time"`
}

func (p *Page) messageHandler(status string) channel.Handler {
	return func(ctx context.Context, payload []byte, _ channel.AckFunc) error {
		var text string
		if err := codec.DecodeInto(payload, &text); err != nil {
			return err
		}
		p.Post(status, text)
		return nil
	}
}

// Post appends a message to the feedback feed.
func (p *Page) Post(status, text string) {
	p.feed.add(Message{Status: status, Text: text, Time: time.Now()})
	p.notify(Change{Type: ChangeMessage})
}

// Messages returns the feed, oldest first.
func (p *Page) Messages() []Message {
	return p.feed.list()
}

// feed is a bounded message log that drops the oldest entries.
type feed struct {
	mu   sync.Mutex
	max  int
	msgs []Message
}

func newFeed(max int) *feed {
	return &feed{max: max}
}

func (f *feed) add(m Message) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.msgs = append(f.msgs, m)
	if over := len(f.msgs) - f.max; over > 0 {
		f.msgs = append([]Message(nil), f.msgs[over:]...)
	}
}

func (f *feed) list() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]Message(nil), f.msgs...)
}
