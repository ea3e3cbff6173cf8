// Package metrics экспортирует метрики движка оверлеев в Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/annel0/blockdisguise/internal/eventbus"
	"github.com/annel0/blockdisguise/internal/logging"
)

const namespace = "overlay"

// Metrics набор счётчиков движка в собственном реестре.
// Счётчики событий обновляются подпиской на шину, счётчики шины опросом Stats.
type Metrics struct {
	registry *prometheus.Registry
	bus      eventbus.EventBus
	sub      eventbus.Subscription
	server   *http.Server
	quit     chan struct{}
	done     chan struct{}

	events      *prometheus.CounterVec
	cells       prometheus.Counter
	drops       prometheus.Counter
	moved       prometheus.Counter
	definitions prometheus.Gauge

	published prometheus.Counter
	consumed  prometheus.Counter
	dropped   prometheus.Counter
	inflight  prometheus.Gauge
}

// New создаёт метрики и подписывается на все события шины
func New(bus eventbus.EventBus) (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		bus:      bus,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "События движка по типам.",
		}, []string{"type"}),
		cells: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatched_cells_total",
			Help:      "Клеток отправлено зрителям.",
		}),
		drops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_items_total",
			Help:      "Предметов выброшено при разрушении оверлеев.",
		}),
		moved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moved_entries_total",
			Help:      "Записей перенесено при сдвиге поршнем.",
		}),
		definitions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "definitions",
			Help:      "Число загруженных определений.",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventbus",
			Name:      "messages_published_total",
			Help:      "Общее число опубликованных сообщений.",
		}),
		consumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventbus",
			Name:      "messages_consumed_total",
			Help:      "Общее число доставленных сообщений подписчикам.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventbus",
			Name:      "messages_dropped_total",
			Help:      "Сообщений, отброшенных из-за ограничения back-pressure.",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "eventbus",
			Name:      "messages_inflight",
			Help:      "Количество сообщений в очереди.",
		}),
	}

	m.registry.MustRegister(m.events, m.cells, m.drops, m.moved, m.definitions,
		m.published, m.consumed, m.dropped, m.inflight)

	sub, err := bus.Subscribe(context.Background(), eventbus.Filter{}, m.observe)
	if err != nil {
		return nil, err
	}
	m.sub = sub
	go m.loop()
	return m, nil
}

// Registry реестр метрик
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler HTTP-обработчик /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartHTTP запускает HTTP-эндпоинт Prometheus на указанном адресе (например, ":2112").
// Метод неблокирующий: HTTP-сервер стартует в отдельной горутине.
func (m *Metrics) StartHTTP(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	m.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logging.Info("Prometheus /metrics доступен по адресу %s", addr)
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Ошибка Prometheus HTTP сервера: %v", err)
		}
	}()
}

// Stop отписывается от шины и останавливает HTTP-сервер
func (m *Metrics) Stop() {
	m.sub.Unsubscribe()
	close(m.quit)
	<-m.done

	if m.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.server.Shutdown(ctx); err != nil {
			logging.Warn("Остановка Prometheus HTTP сервера: %v", err)
		}
	}
}

func (m *Metrics) observe(_ context.Context, ev *eventbus.Envelope) {
	m.events.WithLabelValues(ev.EventType).Inc()

	switch ev.EventType {
	case eventbus.TypeChunkDispatched:
		var p eventbus.DispatchEvent
		if ev.Decode(&p) == nil {
			m.cells.Add(float64(p.Cells))
		}
	case eventbus.TypeOverlayDestroyed:
		var p eventbus.OverlayEvent
		if ev.Decode(&p) == nil {
			m.drops.Add(float64(p.Drops))
		}
	case eventbus.TypeOverlaysMoved:
		var p eventbus.MoveEvent
		if ev.Decode(&p) == nil {
			m.moved.Add(float64(p.Moved))
		}
	case eventbus.TypeDefinitionsLoaded:
		var p eventbus.ReloadEvent
		if ev.Decode(&p) == nil {
			m.definitions.Set(float64(p.Definitions))
		}
	}
}

func (m *Metrics) loop() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	defer close(m.done)

	// Для коррекции Counter нужно хранить прошлое значение и прибавлять дельту.
	var prev eventbus.Stats

	for {
		select {
		case <-ticker.C:
			prev = m.collect(prev)
		case <-m.quit:
			return
		}
	}
}

// collect переносит статистику шины в счётчики и возвращает её
func (m *Metrics) collect(prev eventbus.Stats) eventbus.Stats {
	stats := m.bus.Metrics()

	if d := stats.Published - prev.Published; d > 0 {
		m.published.Add(float64(d))
	}
	if d := stats.Consumed - prev.Consumed; d > 0 {
		m.consumed.Add(float64(d))
	}
	if d := stats.Dropped - prev.Dropped; d > 0 {
		m.dropped.Add(float64(d))
	}
	m.inflight.Set(float64(stats.InFlight))
	return stats
}
