package memory

import (
	"sort"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// productRepositoryInMemory — in-memory реализация ProductRepository.
type productRepositoryInMemory struct {
	store *Store
}

// NewProductRepository возвращает in-memory репозиторий каталога товаров.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepositoryInMemory{store: store}
}

// Create сохраняет новый товар, если ID ещё не занят.
func (r *productRepositoryInMemory) Create(product domain.Product) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.products[product.ID]; exists {
		return domain.ErrAlreadyExists
	}
	r.store.products[product.ID] = product
	return nil
}

// Get возвращает товар или ErrProductNotFound, если его нет.
func (r *productRepositoryInMemory) Get(id string) (domain.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	product, ok := r.store.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// List возвращает страницу товаров, отсортированных по имени.
func (r *productRepositoryInMemory) List(offset, limit int) ([]domain.Product, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.Product, 0, len(r.store.products))
	for _, product := range r.store.products {
		result = append(result, product)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return []domain.Product{}, nil
	}
	result = result[offset:]
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Update перезаписывает описательные поля товара, не трогая остаток.
func (r *productRepositoryInMemory) Update(product domain.Product) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.products[product.ID]
	if !ok {
		return domain.ErrProductNotFound
	}

	current.Name = product.Name
	current.Description = product.Description
	current.Image = product.Image
	current.PriceMinor = product.PriceMinor
	current.UpdatedAt = product.UpdatedAt
	r.store.products[product.ID] = current
	return nil
}

// Delete удаляет товар вместе со связями с категориями.
func (r *productRepositoryInMemory) Delete(id string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.products[id]; !ok {
		return false, nil
	}
	delete(r.store.products, id)
	for link := range r.store.links {
		if link.ProductID == id {
			delete(r.store.links, link)
		}
	}
	return true, nil
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
