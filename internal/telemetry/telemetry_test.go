package telemetry

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librescoot/smartpot-service/internal/fsm"
)

var discard = log.New(io.Discard, "", 0)

type recordingSink struct {
	name string
	err  error

	mu    sync.Mutex
	calls int
	got   []Snapshot
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Publish(_ context.Context, s Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return r.err
	}
	r.got = append(r.got, s)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestReporterOffersSnapshotEachPeriod(t *testing.T) {
	var offered []Snapshot
	full := false
	r := NewReporter(5000,
		func() Snapshot { return Snapshot{Temperature: 21, Unit: "C"} },
		func(s Snapshot) bool {
			if full {
				return false
			}
			offered = append(offered, s)
			return true
		}, discard)

	assert.Equal(t, []fsm.Effect{fsm.Arm(fsm.TimerTelemetry, 5000)}, r.Handle(fsm.E(fsm.KindInit, 0)))
	assert.Empty(t, offered)

	assert.Equal(t, []fsm.Effect{fsm.Arm(fsm.TimerTelemetry, 5000)}, r.Handle(fsm.E(fsm.KindTimeout, int(fsm.TimerTelemetry))))
	require.Len(t, offered, 1)
	assert.Equal(t, 21, offered[0].Temperature)

	full = true
	r.Handle(fsm.E(fsm.KindTimeout, int(fsm.TimerTelemetry)))
	assert.Equal(t, 1, r.Dropped())

	assert.Nil(t, r.Handle(fsm.E(fsm.KindPressed, 0)))
}

func TestPublisherOfferIsNonBlocking(t *testing.T) {
	p := NewPublisher(1, discard)
	assert.True(t, p.Offer(Snapshot{}))
	assert.False(t, p.Offer(Snapshot{}))
}

func TestPublisherFansOut(t *testing.T) {
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b"}
	p := NewPublisher(4, discard, a, b)

	p.publish(context.Background(), Snapshot{Moisture: 42})

	require.Len(t, a.got, 1)
	require.Len(t, b.got, 1)
	assert.Equal(t, 42, b.got[0].Moisture)
}

func TestPublisherBreakerIsolatesFailingSink(t *testing.T) {
	bad := &recordingSink{name: "bad", err: errors.New("broker down")}
	good := &recordingSink{name: "good"}
	p := NewPublisher(4, discard, bad, good)

	for i := 0; i < breakerFailures+3; i++ {
		p.publish(context.Background(), Snapshot{})
	}

	assert.Equal(t, breakerFailures, bad.count(), "breaker opens after consecutive failures")
	assert.Equal(t, breakerFailures+3, good.count())
}

func TestPublisherRunStopsOnCancel(t *testing.T) {
	sink := &recordingSink{name: "s"}
	p := NewPublisher(4, discard, sink)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.True(t, p.Offer(Snapshot{}))
	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher did not stop")
	}
}

func TestRedisFields(t *testing.T) {
	f := fields(Snapshot{Temperature: 70, Unit: "F", Moisture: 25, Threshold: 30, WaterLow: true, Time: time.Unix(100, 0)})
	assert.Equal(t, [2]string{"temperature", "70"}, f[0])
	assert.Equal(t, [2]string{"unit", "F"}, f[1])
	assert.Contains(t, f, [2]string{"water-low", "true"})
	assert.Contains(t, f, [2]string{"threshold", "30"})
	assert.Equal(t, [2]string{"updated", "100"}, f[len(f)-1])
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	require.NoError(t, m.Publish(context.Background(), Snapshot{Temperature: 21, Moisture: 40, WaterLow: true, PumpRuns: 3}))
	m.EventDropped("interrupt")
	m.EventDropped("interrupt")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, line := range []string{
		"smartpot_temperature 21",
		"smartpot_moisture_percent 40",
		"smartpot_water_low 1",
		"smartpot_pumping 0",
		"smartpot_pump_runs 3",
		`smartpot_events_dropped_total{queue="interrupt"} 2`,
	} {
		assert.True(t, strings.Contains(body, line+"\n"), line)
	}
}
