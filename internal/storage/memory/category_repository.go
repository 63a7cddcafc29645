package memory

import (
	"sort"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// categoryRepositoryInMemory — in-memory реализация CategoryRepository.
type categoryRepositoryInMemory struct {
	store *Store
}

// NewCategoryRepository возвращает in-memory репозиторий категорий.
func NewCategoryRepository(store *Store) domain.CategoryRepository {
	return &categoryRepositoryInMemory{store: store}
}

func (r *categoryRepositoryInMemory) Create(category domain.Category) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.categories[category.ID]; exists {
		return domain.ErrAlreadyExists
	}
	r.store.categories[category.ID] = category
	return nil
}

func (r *categoryRepositoryInMemory) Get(id string) (domain.Category, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	category, ok := r.store.categories[id]
	if !ok {
		return domain.Category{}, domain.ErrCategoryNotFound
	}
	return category, nil
}

func (r *categoryRepositoryInMemory) List() ([]domain.Category, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.Category, 0, len(r.store.categories))
	for _, category := range r.store.categories {
		result = append(result, category)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *categoryRepositoryInMemory) Update(category domain.Category) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.categories[category.ID]
	if !ok {
		return domain.ErrCategoryNotFound
	}
	current.Name = category.Name
	current.UpdatedAt = category.UpdatedAt
	r.store.categories[category.ID] = current
	return nil
}

func (r *categoryRepositoryInMemory) Delete(id string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.categories[id]; !ok {
		return false, nil
	}
	delete(r.store.categories, id)
	for link := range r.store.links {
		if link.CategoryID == id {
			delete(r.store.links, link)
		}
	}
	return true, nil
}

// Assign связывает товар с категорией. Повторное связывание — no-op.
func (r *categoryRepositoryInMemory) Assign(link domain.ProductCategory) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.products[link.ProductID]; !ok {
		return domain.ErrProductNotFound
	}
	if _, ok := r.store.categories[link.CategoryID]; !ok {
		return domain.ErrCategoryNotFound
	}
	r.store.links[link] = struct{}{}
	return nil
}

func (r *categoryRepositoryInMemory) Unassign(link domain.ProductCategory) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.links[link]; !ok {
		return false, nil
	}
	delete(r.store.links, link)
	return true, nil
}

func (r *categoryRepositoryInMemory) ProductsByCategory(categoryID string) ([]string, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]string, 0)
	for link := range r.store.links {
		if link.CategoryID == categoryID {
			result = append(result, link.ProductID)
		}
	}
	sort.Strings(result)
	return result, nil
}

func (r *categoryRepositoryInMemory) CategoriesOfProduct(productID string) ([]string, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]string, 0)
	for link := range r.store.links {
		if link.ProductID == productID {
			result = append(result, link.CategoryID)
		}
	}
	sort.Strings(result)
	return result, nil
}

var _ domain.CategoryRepository = (*categoryRepositoryInMemory)(nil)
