package domain

import "time"

// OrderLine представляет одну позицию заказа.
type OrderLine struct {
	// ID позиции нужен для однозначной идентификации и аудита.
	ID string
	// OrderID — заказ, к которому относится позиция.
	OrderID string
	// ProductID — идентификатор товара из каталога.
	ProductID string
	// Qty — количество единиц товара.
	Qty int32
	// PriceMinor — цена за единицу в минимальных денежных единицах,
	// зафиксированная в момент оформления заказа. Последующие изменения
	// цены товара на эту копию не влияют.
	PriceMinor int64
	// CreatedAt фиксирует момент добавления позиции в заказ.
	CreatedAt time.Time
}

// Order агрегирует заказ клиента и его позиции.
type Order struct {
	ID         string
	CustomerID string
	// OrderDate — дата оформления заказа, приходит из запроса клиента.
	OrderDate time.Time
	Lines     []OrderLine
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if len(o.Lines) == 0 {
		errs = append(errs, ErrLinesRequired)
	}

	for _, line := range o.Lines {
		if line.ProductID == "" {
			errs = append(errs, ErrLineProductRequired)
		}
		if line.Qty <= 0 {
			errs = append(errs, ErrLineQtyInvalid)
		}
		if line.PriceMinor < 0 {
			errs = append(errs, ErrLinePriceInvalid)
		}
	}

	return errs
}

// QtyByProduct возвращает суммарное количество по каждому товару заказа.
// Используется при расчёте складских дельт при обновлении заказа.
func (o *Order) QtyByProduct() map[string]int32 {
	result := make(map[string]int32, len(o.Lines))
	for _, line := range o.Lines {
		result[line.ProductID] += line.Qty
	}
	return result
}

// TotalMinor возвращает сумму заказа в минимальных денежных единицах.
func (o *Order) TotalMinor() int64 {
	var total int64
	for _, line := range o.Lines {
		total += int64(line.Qty) * line.PriceMinor
	}
	return total
}
