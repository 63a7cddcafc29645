package domain

import "time"

// Product описывает товар каталога.
type Product struct {
	ID   string
	Name string
	// Description — краткое описание товара для витрины.
	Description string
	// Image — URL или путь к изображению товара.
	Image string
	// PriceMinor — актуальная цена за единицу в минимальных денежных единицах.
	PriceMinor int64
	// Stock — количество доступных единиц. Меняется только через
	// order workflow и никогда не опускается ниже нуля.
	Stock     int32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет, корректно ли заполнены ключевые поля товара.
func (p *Product) Validate() []error {
	var errs []error

	if p.Name == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if p.PriceMinor < 0 {
		errs = append(errs, ErrProductPriceInvalid)
	}
	if p.Stock < 0 {
		errs = append(errs, ErrProductStockInvalid)
	}

	return errs
}
