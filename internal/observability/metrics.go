// Package observability bundles the Prometheus metrics the daemon exposes
// about the mount it drives.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MountCollector holds the metrics for one mount session and provides
// helpers to feed them from status updates and command dispatches.
type MountCollector struct {
	gatherer prometheus.Gatherer

	RightAscension prometheus.Gauge
	Declination    prometheus.Gauge
	Slewing        prometheus.Gauge
	Parked         prometheus.Gauge
	StatusUpdates  prometheus.Counter
	Commands       *prometheus.CounterVec
}

// NewMountCollector registers the mount metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewMountCollector(reg prometheus.Registerer) (*MountCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ra, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eq500x_right_ascension_hours",
		Help: "Right ascension the mount reports, in hours.",
	}), "eq500x_right_ascension_hours")
	if err != nil {
		return nil, err
	}
	dec, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eq500x_declination_degrees",
		Help: "Declination the mount reports, in signed degrees.",
	}), "eq500x_declination_degrees")
	if err != nil {
		return nil, err
	}
	slewing, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eq500x_slewing",
		Help: "Whether the centering procedure is driving the mount (1) or the mount is tracking (0).",
	}), "eq500x_slewing")
	if err != nil {
		return nil, err
	}
	parked, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eq500x_parked",
		Help: "Whether the mount sits at its power-on attitude (1) or has been pointed (0).",
	}), "eq500x_parked")
	if err != nil {
		return nil, err
	}

	updates, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eq500x_status_updates_total",
		Help: "Total number of status snapshots published by the mount session.",
	}), "eq500x_status_updates_total")
	if err != nil {
		return nil, err
	}

	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eq500x_commands_total",
		Help: "Total number of dispatched mount commands, labeled by command and outcome.",
	}, []string{"command", "outcome"})
	commands, err = registerCounterVec(reg, commands, "eq500x_commands_total")
	if err != nil {
		return nil, err
	}

	return &MountCollector{
		gatherer:       gatherer,
		RightAscension: ra,
		Declination:    dec,
		Slewing:        slewing,
		Parked:         parked,
		StatusUpdates:  updates,
		Commands:       commands,
	}, nil
}

// ObservePosition records one pointing snapshot published by the mount.
func (c *MountCollector) ObservePosition(ra, dec float64, slewing, parked bool) {
	if c == nil {
		return
	}
	if c.RightAscension != nil {
		c.RightAscension.Set(ra)
	}
	if c.Declination != nil {
		c.Declination.Set(dec)
	}
	if c.Slewing != nil {
		c.Slewing.Set(boolValue(slewing))
	}
	if c.Parked != nil {
		c.Parked.Set(boolValue(parked))
	}
	if c.StatusUpdates != nil {
		c.StatusUpdates.Inc()
	}
}

// IncCommand counts one dispatched command, outcome "ok" or "error".
func (c *MountCollector) IncCommand(command, outcome string) {
	if c == nil || c.Commands == nil {
		return
	}
	c.Commands.WithLabelValues(command, outcome).Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *MountCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
