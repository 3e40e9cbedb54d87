// Copyright (C) 2023 Gobalsky Labs Limited
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package metrics exposes engine instrumentation over prometheus. All
// recording helpers are no-ops until Start has run with metrics
// enabled, so engine code calls them unconditionally.
package metrics

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Gauge ...
	Gauge instrument = iota
	// Counter ...
	Counter
	// Histogram ...
	Histogram
)

var (
	// ErrInstrumentNotSupported signals the specified instrument is not yet supported
	ErrInstrumentNotSupported = errors.New("instrument type unsupported")
	// ErrInstrumentTypeMismatch signal the type of the instrument is not expected
	ErrInstrumentTypeMismatch = errors.New("instrument is not of the expected type")
)

var (
	// Orders placed, labelled by market and order type.
	orderCounter *prometheus.CounterVec
	// Resting orders per market and side.
	restingOrderGauge *prometheus.GaugeVec
	// Claimed seats per market.
	seatGauge *prometheus.GaugeVec
	// Dynamic bytes allocated per account buffer.
	arenaBytesGauge *prometheus.GaugeVec
	// Cumulative engine time per operation.
	engineTime *prometheus.CounterVec
	// Impact walk duration, labelled by axis.
	impactDuration *prometheus.HistogramVec
)

// abstract prometheus types
type instrument int

// combine all possible prometheus options + way to differentiate between regular or vector type
type instrumentOpts struct {
	opts    prometheus.Opts
	buckets []float64
	vectors []string
}

type mi struct {
	gaugeV     *prometheus.GaugeVec
	gauge      prometheus.Gauge
	counterV   *prometheus.CounterVec
	counter    prometheus.Counter
	histogramV *prometheus.HistogramVec
	histogram  prometheus.Histogram
}

// MetricInstrument - template interface for mi type return value - only mock if needed, and only mock the funcs you use
type MetricInstrument interface {
	Gauge() (prometheus.Gauge, error)
	GaugeVec() (*prometheus.GaugeVec, error)
	Counter() (prometheus.Counter, error)
	CounterVec() (*prometheus.CounterVec, error)
	Histogram() (prometheus.Histogram, error)
	HistogramVec() (*prometheus.HistogramVec, error)
}

// InstrumentOption - vararg for instrument options setting
type InstrumentOption func(o *instrumentOpts)

// Vectors - configuration used to create a vector of a given interface, slice of label names
func Vectors(labels ...string) InstrumentOption {
	return func(o *instrumentOpts) {
		o.vectors = labels
	}
}

// Help - set the help field on instrument
func Help(help string) InstrumentOption {
	return func(o *instrumentOpts) {
		o.opts.Help = help
	}
}

// Namespace - set namespace
func Namespace(ns string) InstrumentOption {
	return func(o *instrumentOpts) {
		o.opts.Namespace = ns
	}
}

// Subsystem - set subsystem
func Subsystem(s string) InstrumentOption {
	return func(o *instrumentOpts) {
		o.opts.Subsystem = s
	}
}

// Labels set labels for instrument (similar to vector, but with given values)
func Labels(labels map[string]string) InstrumentOption {
	return func(o *instrumentOpts) {
		o.opts.ConstLabels = prometheus.Labels(labels)
	}
}

// Buckets - specific to histogram type
func Buckets(b []float64) InstrumentOption {
	return func(o *instrumentOpts) {
		o.buckets = b
	}
}

// AddInstrument configure and register new metrics instrument.
func AddInstrument(t instrument, name string, opts ...InstrumentOption) (*mi, error) {
	var col prometheus.Collector
	ret := mi{}
	opt := instrumentOpts{
		opts: prometheus.Opts{
			Name: name,
		},
	}
	for _, o := range opts {
		o(&opt)
	}
	switch t {
	case Gauge:
		o := opt.gauge()
		if len(opt.vectors) == 0 {
			ret.gauge = prometheus.NewGauge(o)
			col = ret.gauge
		} else {
			ret.gaugeV = prometheus.NewGaugeVec(o, opt.vectors)
			col = ret.gaugeV
		}
	case Counter:
		o := opt.counter()
		if len(opt.vectors) == 0 {
			ret.counter = prometheus.NewCounter(o)
			col = ret.counter
		} else {
			ret.counterV = prometheus.NewCounterVec(o, opt.vectors)
			col = ret.counterV
		}
	case Histogram:
		o := opt.histogram()
		if len(opt.vectors) == 0 {
			ret.histogram = prometheus.NewHistogram(o)
			col = ret.histogram
		} else {
			ret.histogramV = prometheus.NewHistogramVec(o, opt.vectors)
			col = ret.histogramV
		}
	default:
		return nil, ErrInstrumentNotSupported
	}
	if err := prometheus.Register(col); err != nil {
		return nil, err
	}
	return &ret, nil
}

// Start enable metrics (given config)
func Start(conf Config) {
	if !conf.Enabled {
		return
	}
	if err := setupMetrics(); err != nil {
		panic("could not set up metrics")
	}
	http.Handle(conf.Path, promhttp.Handler())
	go func() {
		log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", conf.Port), nil))
	}()
}

func (i instrumentOpts) gauge() prometheus.GaugeOpts {
	return prometheus.GaugeOpts(i.opts)
}

func (i instrumentOpts) counter() prometheus.CounterOpts {
	return prometheus.CounterOpts(i.opts)
}

func (i instrumentOpts) histogram() prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Name:        i.opts.Name,
		Namespace:   i.opts.Namespace,
		Subsystem:   i.opts.Subsystem,
		ConstLabels: i.opts.ConstLabels,
		Help:        i.opts.Help,
		Buckets:     i.buckets,
	}
}

// Gauge returns a prometheus Gauge instrument
func (m mi) Gauge() (prometheus.Gauge, error) {
	if m.gauge == nil {
		return nil, ErrInstrumentTypeMismatch
	}
	return m.gauge, nil
}

// GaugeVec returns a prometheus GaugeVec instrument
func (m mi) GaugeVec() (*prometheus.GaugeVec, error) {
	if m.gaugeV == nil {
		return nil, ErrInstrumentTypeMismatch
	}
	return m.gaugeV, nil
}

// Counter returns a prometheus Counter instrument
func (m mi) Counter() (prometheus.Counter, error) {
	if m.counter == nil {
		return nil, ErrInstrumentTypeMismatch
	}
	return m.counter, nil
}

// CounterVec returns a prometheus CounterVec instrument
func (m mi) CounterVec() (*prometheus.CounterVec, error) {
	if m.counterV == nil {
		return nil, ErrInstrumentTypeMismatch
	}
	return m.counterV, nil
}

// Histogram returns a prometheus Histogram instrument
func (m mi) Histogram() (prometheus.Histogram, error) {
	if m.histogram == nil {
		return nil, ErrInstrumentTypeMismatch
	}
	return m.histogram, nil
}

// HistogramVec returns a prometheus HistogramVec instrument
func (m mi) HistogramVec() (*prometheus.HistogramVec, error) {
	if m.histogramV == nil {
		return nil, ErrInstrumentTypeMismatch
	}
	return m.histogramV, nil
}

func setupMetrics() error {
	h, err := AddInstrument(
		Counter,
		"orders_placed_total",
		Namespace("flatbook"),
		Vectors("market", "type"),
		Help("Number of orders placed"),
	)
	if err != nil {
		return err
	}
	oc, err := h.CounterVec()
	if err != nil {
		return err
	}
	orderCounter = oc

	h, err = AddInstrument(
		Gauge,
		"resting_orders",
		Namespace("flatbook"),
		Vectors("market", "side"),
		Help("Number of resting orders on the book"),
	)
	if err != nil {
		return err
	}
	rg, err := h.GaugeVec()
	if err != nil {
		return err
	}
	restingOrderGauge = rg

	h, err = AddInstrument(
		Gauge,
		"claimed_seats",
		Namespace("flatbook"),
		Vectors("market"),
		Help("Number of claimed seats"),
	)
	if err != nil {
		return err
	}
	sg, err := h.GaugeVec()
	if err != nil {
		return err
	}
	seatGauge = sg

	h, err = AddInstrument(
		Gauge,
		"arena_bytes_allocated",
		Namespace("flatbook"),
		Vectors("account"),
		Help("Dynamic bytes allocated in the account buffer"),
	)
	if err != nil {
		return err
	}
	ag, err := h.GaugeVec()
	if err != nil {
		return err
	}
	arenaBytesGauge = ag

	h, err = AddInstrument(
		Counter,
		"engine_seconds_total",
		Namespace("flatbook"),
		Vectors("operation"),
		Help("Cumulative time spent in engine operations"),
	)
	if err != nil {
		return err
	}
	et, err := h.CounterVec()
	if err != nil {
		return err
	}
	engineTime = et

	h, err = AddInstrument(
		Histogram,
		"impact_duration_seconds",
		Namespace("flatbook"),
		Vectors("axis"),
		Buckets([]float64{1e-6, 1e-5, 1e-4, 1e-3, 1e-2}),
		Help("Duration of impact simulations"),
	)
	if err != nil {
		return err
	}
	id, err := h.HistogramVec()
	if err != nil {
		return err
	}
	impactDuration = id

	return nil
}

// OrderPlaced increments the placed order counter.
func OrderPlaced(market, orderType string) {
	if orderCounter == nil {
		return
	}
	orderCounter.WithLabelValues(market, orderType).Inc()
}

// SetRestingOrders records the book depth on one side of a market.
func SetRestingOrders(market, side string, n int) {
	if restingOrderGauge == nil {
		return
	}
	restingOrderGauge.WithLabelValues(market, side).Set(float64(n))
}

// SetClaimedSeats records the seat count of a market.
func SetClaimedSeats(market string, n int) {
	if seatGauge == nil {
		return
	}
	seatGauge.WithLabelValues(market).Set(float64(n))
}

// SetArenaBytes records the dynamic bytes allocated in a buffer.
func SetArenaBytes(account string, n uint32) {
	if arenaBytesGauge == nil {
		return
	}
	arenaBytesGauge.WithLabelValues(account).Set(float64(n))
}

// EngineTimeCounterAdd accumulates time spent in a named operation.
// Call with a deferred time.Since.
func EngineTimeCounterAdd(start time.Time, operation string) {
	if engineTime == nil {
		return
	}
	engineTime.WithLabelValues(operation).Add(time.Since(start).Seconds())
}

// ObserveImpactDuration records one impact walk on the given axis.
func ObserveImpactDuration(axis string, d time.Duration) {
	if impactDuration == nil {
		return
	}
	impactDuration.WithLabelValues(axis).Observe(d.Seconds())
}
