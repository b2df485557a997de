package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/widgetsync/internal/store"
)

func TestEventCounters(t *testing.T) {
	m := New()

	m.InboundEvent("s1#inc", OutcomeOK)
	m.InboundEvent("s2#inc", OutcomeOK)
	m.InboundEvent("cache_save", OutcomeError)
	m.OutboundEvent("d1#change")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.inbound.WithLabelValues("inc", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inbound.WithLabelValues("cache_save", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outbound.WithLabelValues("change")))
}

func TestClientGauge(t *testing.T) {
	m := New()
	m.ClientConnected()
	m.ClientConnected()
	m.ClientDisconnected()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.clients))
}

func TestInstrumentStore(t *testing.T) {
	ctx := context.Background()
	m := New()
	mem := store.NewMemoryStore()
	s := m.InstrumentStore(mem)

	require.NoError(t, s.Set(ctx, "a", "1"))
	require.NoError(t, mem.Close())
	require.Error(t, s.Set(ctx, "a", "2"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheWrites.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheWrites.WithLabelValues(OutcomeError)))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	mem := store.NewMemoryStore()

	assert.NotPanics(t, func() {
		m.InboundEvent("x#get", OutcomeOK)
		m.OutboundEvent("x#change")
		m.ClientConnected()
		m.ClientDisconnected()
	})
	assert.Same(t, mem, m.InstrumentStore(mem))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.OutboundEvent("d1#change")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `widgetsync_outbound_events_total{suffix="change"} 1`)
}
