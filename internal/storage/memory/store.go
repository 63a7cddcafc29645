package memory

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	status     string
	attemptCnt int
	createdAt  time.Time
	updatedAt  time.Time
}

// Store — общее in-memory хранилище для локальной разработки и тестов.
// Все репозитории пакета являются представлениями над одним Store, поэтому
// order workflow может менять товары, заказы, outbox и историю согласованно.
type Store struct {
	mu sync.RWMutex

	products    map[string]domain.Product
	categories  map[string]domain.Category
	links       map[domain.ProductCategory]struct{}
	customers   map[string]domain.Customer
	orders      map[string]domain.Order
	outbox      map[string]*outboxRecord
	idempotency map[string]domain.IdempotencyRecord
	history     map[string][]domain.HistoryEvent
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		products:    make(map[string]domain.Product),
		categories:  make(map[string]domain.Category),
		links:       make(map[domain.ProductCategory]struct{}),
		customers:   make(map[string]domain.Customer),
		orders:      make(map[string]domain.Order),
		outbox:      make(map[string]*outboxRecord),
		idempotency: make(map[string]domain.IdempotencyRecord),
		history:     make(map[string][]domain.HistoryEvent),
	}
}

// snapshot хранит копию состояния, которое мутирует workflow-транзакция.
type snapshot struct {
	products map[string]domain.Product
	orders   map[string]domain.Order
	outbox   map[string]*outboxRecord
	history  map[string][]domain.HistoryEvent
}

// snapshotLocked копирует состояние под уже взятой блокировкой.
func (s *Store) snapshotLocked() snapshot {
	snap := snapshot{
		products: make(map[string]domain.Product, len(s.products)),
		orders:   make(map[string]domain.Order, len(s.orders)),
		outbox:   make(map[string]*outboxRecord, len(s.outbox)),
		history:  make(map[string][]domain.HistoryEvent, len(s.history)),
	}
	for id, product := range s.products {
		snap.products[id] = product
	}
	for id, order := range s.orders {
		snap.orders[id] = cloneOrder(order)
	}
	for id, rec := range s.outbox {
		recCopy := *rec
		snap.outbox[id] = &recCopy
	}
	for id, events := range s.history {
		snap.history[id] = append([]domain.HistoryEvent(nil), events...)
	}
	return snap
}

// restoreLocked откатывает состояние к снимку под уже взятой блокировкой.
func (s *Store) restoreLocked(snap snapshot) {
	s.products = snap.products
	s.orders = snap.orders
	s.outbox = snap.outbox
	s.history = snap.history
}

// cloneOrder копирует заказ вместе со слайсом позиций, чтобы избежать
// непредсказуемых мутаций извне.
func cloneOrder(order domain.Order) domain.Order {
	clone := order
	clone.Lines = append([]domain.OrderLine(nil), order.Lines...)
	return clone
}
