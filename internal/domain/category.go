package domain

import "time"

// Category описывает категорию каталога.
type Category struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет обязательные поля категории.
func (c *Category) Validate() []error {
	var errs []error
	if c.Name == "" {
		errs = append(errs, ErrCategoryNameRequired)
	}
	return errs
}

// ProductCategory — связь many-to-many между товаром и категорией.
// Идентичности помимо пары ключей у связи нет.
type ProductCategory struct {
	ProductID  string
	CategoryID string
}
