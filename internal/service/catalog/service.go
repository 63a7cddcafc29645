package catalog

import (
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ProductInput — описательные поля товара в командах создания и обновления.
type ProductInput struct {
	Name        string
	Description string
	Image       string
	PriceMinor  int64
	// Stock учитывается только при создании: дальше остаток меняет
	// исключительно order workflow.
	Stock int32
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Service обслуживает каталог: товары, категории и связи между ними.
type Service struct {
	products   domain.ProductRepository
	categories domain.CategoryRepository
	logger     *log.Entry
}

// NewService конструирует сервис каталога.
func NewService(products domain.ProductRepository, categories domain.CategoryRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "catalog-service")
	}
	return &Service{
		products:   products,
		categories: categories,
		logger:     logger,
	}
}

// CreateProduct добавляет товар в каталог.
func (s *Service) CreateProduct(input ProductInput) (domain.Product, error) {
	now := time.Now().UTC()
	product := domain.Product{
		ID:          uuid.NewString(),
		Name:        input.Name,
		Description: input.Description,
		Image:       input.Image,
		PriceMinor:  input.PriceMinor,
		Stock:       input.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := domain.NewValidationError(product.Validate()); err != nil {
		return domain.Product{}, err
	}

	if err := s.products.Create(product); err != nil {
		s.logger.WithError(err).WithField("product_id", product.ID).Error("failed to create product")
		return domain.Product{}, err
	}

	return product, nil
}

// GetProduct возвращает товар по идентификатору.
func (s *Service) GetProduct(id string) (domain.Product, error) {
	return s.products.Get(id)
}

// ListProducts возвращает страницу каталога. page нумеруется с единицы.
func (s *Service) ListProducts(page, pageSize int) ([]domain.Product, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return s.products.List((page-1)*pageSize, pageSize)
}

// UpdateProduct обновляет описательные поля товара. Остаток не трогает.
func (s *Service) UpdateProduct(id string, input ProductInput) (domain.Product, error) {
	product := domain.Product{
		ID:          id,
		Name:        input.Name,
		Description: input.Description,
		Image:       input.Image,
		PriceMinor:  input.PriceMinor,
		UpdatedAt:   time.Now().UTC(),
	}

	if err := domain.NewValidationError(product.Validate()); err != nil {
		return domain.Product{}, err
	}

	if err := s.products.Update(product); err != nil {
		s.logger.WithError(err).WithField("product_id", id).Warn("failed to update product")
		return domain.Product{}, err
	}

	return s.products.Get(id)
}

// DeleteProduct удаляет товар и его связи с категориями.
// Возвращает false, если товара не было.
func (s *Service) DeleteProduct(id string) (bool, error) {
	deleted, err := s.products.Delete(id)
	if err != nil {
		s.logger.WithError(err).WithField("product_id", id).Error("failed to delete product")
		return false, err
	}
	return deleted, nil
}

// CreateCategory добавляет категорию.
func (s *Service) CreateCategory(name string) (domain.Category, error) {
	now := time.Now().UTC()
	category := domain.Category{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := domain.NewValidationError(category.Validate()); err != nil {
		return domain.Category{}, err
	}

	if err := s.categories.Create(category); err != nil {
		s.logger.WithError(err).WithField("category_id", category.ID).Error("failed to create category")
		return domain.Category{}, err
	}

	return category, nil
}

// GetCategory возвращает категорию по идентификатору.
func (s *Service) GetCategory(id string) (domain.Category, error) {
	return s.categories.Get(id)
}

// ListCategories возвращает все категории.
func (s *Service) ListCategories() ([]domain.Category, error) {
	return s.categories.List()
}

// UpdateCategory переименовывает категорию.
func (s *Service) UpdateCategory(id, name string) (domain.Category, error) {
	category := domain.Category{
		ID:        id,
		Name:      name,
		UpdatedAt: time.Now().UTC(),
	}

	if err := domain.NewValidationError(category.Validate()); err != nil {
		return domain.Category{}, err
	}

	if err := s.categories.Update(category); err != nil {
		s.logger.WithError(err).WithField("category_id", id).Warn("failed to update category")
		return domain.Category{}, err
	}

	return s.categories.Get(id)
}

// DeleteCategory удаляет категорию вместе со связями.
func (s *Service) DeleteCategory(id string) (bool, error) {
	deleted, err := s.categories.Delete(id)
	if err != nil {
		s.logger.WithError(err).WithField("category_id", id).Error("failed to delete category")
		return false, err
	}
	return deleted, nil
}

// AssignProduct связывает товар с категорией. Обе стороны должны существовать,
// повторное связывание — no-op.
func (s *Service) AssignProduct(productID, categoryID string) error {
	if _, err := s.products.Get(productID); err != nil {
		return err
	}
	if _, err := s.categories.Get(categoryID); err != nil {
		return err
	}
	return s.categories.Assign(domain.ProductCategory{ProductID: productID, CategoryID: categoryID})
}

// UnassignProduct разрывает связь товара с категорией.
func (s *Service) UnassignProduct(productID, categoryID string) (bool, error) {
	return s.categories.Unassign(domain.ProductCategory{ProductID: productID, CategoryID: categoryID})
}

// ProductsInCategory возвращает товары категории.
func (s *Service) ProductsInCategory(categoryID string) ([]domain.Product, error) {
	if _, err := s.categories.Get(categoryID); err != nil {
		return nil, err
	}

	ids, err := s.categories.ProductsByCategory(categoryID)
	if err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		product, err := s.products.Get(id)
		if err != nil {
			// Связь без товара не должна ронять выдачу целиком.
			s.logger.WithError(err).WithField("product_id", id).Warn("linked product is missing")
			continue
		}
		products = append(products, product)
	}

	return products, nil
}

// CategoriesOfProduct возвращает категории товара.
func (s *Service) CategoriesOfProduct(productID string) ([]domain.Category, error) {
	if _, err := s.products.Get(productID); err != nil {
		return nil, err
	}

	ids, err := s.categories.CategoriesOfProduct(productID)
	if err != nil {
		return nil, err
	}

	categories := make([]domain.Category, 0, len(ids))
	for _, id := range ids {
		category, err := s.categories.Get(id)
		if err != nil {
			s.logger.WithError(err).WithField("category_id", id).Warn("linked category is missing")
			continue
		}
		categories = append(categories, category)
	}

	return categories, nil
}
