package memory

import (
	"sort"
	"strings"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// customerRepositoryInMemory — in-memory реализация CustomerRepository.
type customerRepositoryInMemory struct {
	store *Store
}

// NewCustomerRepository возвращает in-memory репозиторий клиентов.
func NewCustomerRepository(store *Store) domain.CustomerRepository {
	return &customerRepositoryInMemory{store: store}
}

func (r *customerRepositoryInMemory) Create(customer domain.Customer) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.customers[customer.ID]; exists {
		return domain.ErrAlreadyExists
	}
	for _, existing := range r.store.customers {
		if strings.EqualFold(existing.Email, customer.Email) {
			return domain.ErrAlreadyExists
		}
	}
	r.store.customers[customer.ID] = customer
	return nil
}

func (r *customerRepositoryInMemory) Get(id string) (domain.Customer, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	customer, ok := r.store.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return customer, nil
}

func (r *customerRepositoryInMemory) GetByEmail(email string) (domain.Customer, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, customer := range r.store.customers {
		if strings.EqualFold(customer.Email, email) {
			return customer, nil
		}
	}
	return domain.Customer{}, domain.ErrCustomerNotFound
}

func (r *customerRepositoryInMemory) List() ([]domain.Customer, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.Customer, 0, len(r.store.customers))
	for _, customer := range r.store.customers {
		result = append(result, customer)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].LastName != result[j].LastName {
			return result[i].LastName < result[j].LastName
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *customerRepositoryInMemory) Update(customer domain.Customer) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.customers[customer.ID]
	if !ok {
		return domain.ErrCustomerNotFound
	}
	current.FirstName = customer.FirstName
	current.LastName = customer.LastName
	current.Email = customer.Email
	current.UpdatedAt = customer.UpdatedAt
	r.store.customers[customer.ID] = current
	return nil
}

func (r *customerRepositoryInMemory) Delete(id string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.customers[id]; !ok {
		return false, nil
	}
	delete(r.store.customers, id)
	return true, nil
}

var _ domain.CustomerRepository = (*customerRepositoryInMemory)(nil)
