package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Danangellotti/app-incendios-cordoba/internal/features"
	"github.com/Danangellotti/app-incendios-cordoba/internal/ml"
	"github.com/Danangellotti/app-incendios-cordoba/internal/risk"
)

type gaugeStub struct {
	mu    sync.Mutex
	value float64
}

func (g *gaugeStub) ActiveSessionsSet(v float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = v
}

func (g *gaugeStub) get() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

func sample() risk.Result {
	v := features.Default()
	return risk.Result{Features: v, Label: ml.LabelLow, Probability: ml.Available(0.2), Alerts: risk.ComputeAlerts(v)}
}

func TestAcquire_CreatesAndReuses(t *testing.T) {
	gauge := &gaugeStub{}
	m := NewManager(clockwork.NewFakeClock(), time.Hour, gauge)

	s, created := m.Acquire("")
	require.True(t, created)
	assert.NotEmpty(t, s.ID)

	again, created := m.Acquire(s.ID)
	assert.False(t, created)
	assert.Same(t, s, again)
	assert.Equal(t, 1.0, gauge.get())
}

func TestAcquire_UnknownIDStartsFreshSession(t *testing.T) {
	m := NewManager(clockwork.NewFakeClock(), time.Hour, nil)

	s, created := m.Acquire("forged-id")
	assert.True(t, created)
	assert.NotEqual(t, "forged-id", s.ID)
}

func TestSessions_HaveSeparateLogs(t *testing.T) {
	m := NewManager(clockwork.NewFakeClock(), time.Hour, nil)
	a, _ := m.Acquire("")
	b, _ := m.Acquire("")

	a.Log.Record(sample())
	a.Log.Record(sample())
	b.Log.Record(sample())

	assert.Equal(t, 2, a.Log.Len())
	assert.Equal(t, 1, b.Log.Len())
	assert.NotEqual(t, a.ID, b.ID)
}

func TestEvict_IdleSessions(t *testing.T) {
	clock := clockwork.NewFakeClock()
	gauge := &gaugeStub{}
	m := NewManager(clock, 30*time.Minute, gauge)

	idle, _ := m.Acquire("")
	clock.Advance(20 * time.Minute)
	active, _ := m.Acquire("")
	clock.Advance(15 * time.Minute)

	_, ok := m.Get(idle.ID)
	assert.False(t, ok, "idle session should be expired")

	assert.Equal(t, 1, m.Evict())
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 1.0, gauge.get())

	_, ok = m.Get(active.ID)
	assert.True(t, ok)
}

func TestAcquire_ExpiredSessionIsReplaced(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewManager(clock, time.Minute, nil)

	s, _ := m.Acquire("")
	s.Log.Record(sample())
	clock.Advance(2 * time.Minute)

	fresh, created := m.Acquire(s.ID)
	assert.True(t, created)
	assert.Equal(t, 0, fresh.Log.Len())
	assert.Equal(t, 1, m.Len())
}

func TestEnd(t *testing.T) {
	m := NewManager(clockwork.NewFakeClock(), 0, nil)
	s, _ := m.Acquire("")

	m.End(s.ID)

	_, ok := m.Get(s.ID)
	assert.False(t, ok)
}

func TestRun_StopsOnCancel(t *testing.T) {
	m := NewManager(clockwork.NewFakeClock(), time.Minute, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
