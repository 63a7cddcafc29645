package memory

import (
	"sort"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// historyRepositoryInMemory хранит события истории заказов в общем Store.
type historyRepositoryInMemory struct {
	store *Store
}

// NewHistoryRepository создаёт in-memory реализацию HistoryRepository.
func NewHistoryRepository(store *Store) domain.HistoryRepository {
	return &historyRepositoryInMemory{store: store}
}

// Append добавляет событие в хранилище.
func (r *historyRepositoryInMemory) Append(event domain.HistoryEvent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}
	r.store.history[event.OrderID] = append(r.store.history[event.OrderID], event)
	return nil
}

// List возвращает события заказа в хронологическом порядке.
func (r *historyRepositoryInMemory) List(orderID string) ([]domain.HistoryEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	events := r.store.history[orderID]
	result := make([]domain.HistoryEvent, len(events))
	copy(result, events)
	sort.Slice(result, func(i, j int) bool {
		return result[i].Occurred.Before(result[j].Occurred)
	})
	return result, nil
}

var _ domain.HistoryRepository = (*historyRepositoryInMemory)(nil)
