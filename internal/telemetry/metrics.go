package telemetry

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exports snapshots and event-loop counters to Prometheus.
type Metrics struct {
	registry *prometheus.Registry

	temperature prometheus.Gauge
	moisture    prometheus.Gauge
	threshold   prometheus.Gauge
	waterLow    prometheus.Gauge
	pumping     prometheus.Gauge
	pumpRuns    prometheus.Gauge
	framesOut   prometheus.Gauge
	commandsIn  prometheus.Gauge

	dropped *prometheus.CounterVec
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "smartpot", Name: name, Help: help})
	}

	m := &Metrics{
		registry:    prometheus.NewRegistry(),
		temperature: gauge("temperature", "Last published temperature in the selected unit."),
		moisture:    gauge("moisture_percent", "Last soil moisture reading."),
		threshold:   gauge("threshold_percent", "Moisture level below which the pot waters."),
		waterLow:    gauge("water_low", "1 when the reservoir is low."),
		pumping:     gauge("pumping", "1 while the pump runs."),
		pumpRuns:    gauge("pump_runs", "Pump runs since start."),
		framesOut:   gauge("bridge_frames_out", "Frames sent to the wireless bridge since start."),
		commandsIn:  gauge("bridge_commands_in", "Commands received from the wireless bridge since start."),
	}
	m.dropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartpot",
		Name:      "events_dropped_total",
		Help:      "Events dropped because a queue was full.",
	}, []string{"queue"})

	m.registry.MustRegister(
		m.temperature, m.moisture, m.threshold, m.waterLow,
		m.pumping, m.pumpRuns, m.framesOut, m.commandsIn, m.dropped,
	)
	return m
}

func (m *Metrics) Name() string { return "metrics" }

// Publish updates the gauges from a snapshot.
func (m *Metrics) Publish(_ context.Context, s Snapshot) error {
	m.temperature.Set(float64(s.Temperature))
	m.moisture.Set(float64(s.Moisture))
	m.threshold.Set(float64(s.Threshold))
	m.waterLow.Set(boolGauge(s.WaterLow))
	m.pumping.Set(boolGauge(s.Pumping))
	m.pumpRuns.Set(float64(s.PumpRuns))
	m.framesOut.Set(float64(s.FramesOut))
	m.commandsIn.Set(float64(s.CommandsIn))
	return nil
}

// EventDropped counts a dropped event. queue names where it was dropped, e.g. "interrupt" or a
// service name. Safe for concurrent use.
func (m *Metrics) EventDropped(queue string) {
	m.dropped.WithLabelValues(queue).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *log.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Printf("Serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
