package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики order workflow.
type OrderMetrics struct {
	// Счётчики операций по типу и результату
	operations *prometheus.CounterVec

	// Гистограммы времени выполнения
	workflowDuration *prometheus.HistogramVec

	// Счётчики событий
	stockRejections prometheus.Counter
	historyEvents   prometheus.Counter
	commandEvents   *prometheus.CounterVec

	// Gauge для команд в обработке
	inFlightCommands prometheus.Gauge
}

// NewOrderMetrics создаёт новый экземпляр метрик order workflow.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_order_operations_total",
			Help: "Total number of order workflow operations grouped by operation and result",
		}, []string{"operation", "result"}),
		workflowDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_order_workflow_duration_seconds",
			Help:    "Duration of order workflow operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		stockRejections: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_order_stock_rejections_total",
			Help: "Total number of order operations rejected due to insufficient stock",
		}),
		historyEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_order_history_events_total",
			Help: "Total number of order history events recorded",
		}),
		commandEvents: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_order_commands_total",
			Help: "Total number of inbound order commands grouped by type and result",
		}, []string{"type", "result"}),
		inFlightCommands: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_order_inflight_commands",
			Help: "Number of order commands currently being processed",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOperation фиксирует завершение операции workflow с результатом.
func (m *OrderMetrics) RecordOperation(operation, result string) {
	m.operations.WithLabelValues(operation, result).Inc()
}

// RecordWorkflowDuration записывает время выполнения операции workflow.
func (m *OrderMetrics) RecordWorkflowDuration(operation string, duration time.Duration) {
	m.workflowDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordStockRejection увеличивает счётчик отказов по остатку.
func (m *OrderMetrics) RecordStockRejection() {
	m.stockRejections.Inc()
}

// RecordHistoryEvent увеличивает счётчик событий истории заказа.
func (m *OrderMetrics) RecordHistoryEvent() {
	m.historyEvents.Inc()
}

// RecordCommand фиксирует обработку входящей команды с результатом.
func (m *OrderMetrics) RecordCommand(commandType, result string) {
	m.commandEvents.WithLabelValues(commandType, result).Inc()
}

// RecordCommandStarted увеличивает количество команд в обработке.
func (m *OrderMetrics) RecordCommandStarted() {
	m.inFlightCommands.Inc()
}

// RecordCommandFinished уменьшает количество команд в обработке.
func (m *OrderMetrics) RecordCommandFinished() {
	m.inFlightCommands.Dec()
}
