package prom

import (
	"sync"

	xhttp "github.com/inkwire/dispatch/pkg/http"
	"github.com/inkwire/dispatch/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemDelivery = "delivery"
	SystemJob      = "job"
	SystemEvent    = "event"
)

const (
	MetricDeliveriesTotal     = "deliveries_total"
	MetricJobExecutionSeconds = "execution_seconds"
	MetricEventsIngestedTotal = "ingested_total"
)

var createLock = &sync.Mutex{}
var namespace = "none"
var defaultLabels prometheus.Labels

var MetricSystemEnabled = false

var counterVecs = make(map[string]*prometheus.CounterVec)
var histogramVecs = make(map[string]*prometheus.HistogramVec)

func Create(host string, env string, nameSpace string) error {
	defaultLabels = make(prometheus.Labels)
	defaultLabels["env"] = env
	defaultLabels["instance"] = host
	namespace = nameSpace
	MetricSystemEnabled = true

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	hasError(createCounterVec(SystemDelivery, MetricDeliveriesTotal, []string{"status", "provider"}))
	hasError(createHistogramVec(SystemJob, MetricJobExecutionSeconds, []string{"provider"}))
	hasError(createCounterVec(SystemEvent, MetricEventsIngestedTotal, []string{"type"}))

	return err
}

func ListenAndServer(port string, url string) {
	hh := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	s := xhttp.CreateServer()
	s.GET(url, hh)
	logger.Info("[metrics-server] listening...", "url", url)
	if err := s.ListenAndServe(port); err != nil {
		logger.Panic("[metrics-server] http listen error", "error", err)
	}
}

func AddDeliveryProcessed(status string, provider string) {
	if !MetricSystemEnabled {
		return
	}
	if c, ok := counterVecs[SystemDelivery+MetricDeliveriesTotal]; ok {
		c.WithLabelValues(status, provider).Inc()
	}
}

func ObserveJobExecution(seconds float64, provider string) {
	if !MetricSystemEnabled {
		return
	}
	if h, ok := histogramVecs[SystemJob+MetricJobExecutionSeconds]; ok {
		h.WithLabelValues(provider).Observe(seconds)
	}
}

func AddEventIngested(eventType string) {
	if !MetricSystemEnabled {
		return
	}
	if c, ok := counterVecs[SystemEvent+MetricEventsIngestedTotal]; ok {
		c.WithLabelValues(eventType).Inc()
	}
}

func createCounterVec(subsystem, name string, labels []string) error {
	createLock.Lock()
	defer createLock.Unlock()
	counterVecs[subsystem+name] = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        "",
		ConstLabels: defaultLabels,
	}, labels)
	return prometheus.Register(counterVecs[subsystem+name])
}

func createHistogramVec(subsystem, name string, labels []string) error {
	createLock.Lock()
	defer createLock.Unlock()
	histogramVecs[subsystem+name] = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        "",
		ConstLabels: defaultLabels,
		Buckets:     prometheus.DefBuckets,
	}, labels)
	return prometheus.Register(histogramVecs[subsystem+name])
}
