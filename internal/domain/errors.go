package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Ошибка отсутствующего идентификатора заказа в команде.
	ErrOrderIDRequired = errors.New("order_id is required")
	// Ошибка отсутствующего идентификатора клиента в заказе.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrLinesRequired = errors.New("order must contain at least one line")
	// Ошибка отсутствующего товара в позиции заказа.
	ErrLineProductRequired = errors.New("line product_id is required")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrLineQtyInvalid = errors.New("line qty must be greater than zero")
	// Ошибка, если зафиксированная цена позиции отрицательная.
	ErrLinePriceInvalid = errors.New("line price must be non-negative")
	// Ошибка отсутствующего названия товара.
	ErrProductNameRequired = errors.New("product name is required")
	// Ошибка отрицательной цены товара.
	ErrProductPriceInvalid = errors.New("product price must be non-negative")
	// Ошибка отрицательного начального остатка.
	ErrProductStockInvalid = errors.New("product stock must be non-negative")
	// Ошибка отсутствующего названия категории.
	ErrCategoryNameRequired = errors.New("category name is required")
	// Ошибка отсутствующего имени клиента.
	ErrCustomerFirstNameRequired = errors.New("customer first name is required")
	// Ошибка отсутствующей фамилии клиента.
	ErrCustomerLastNameRequired = errors.New("customer last name is required")
	// Ошибка некорректного email клиента.
	ErrCustomerEmailInvalid = errors.New("customer email is invalid")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrProductNotFound возвращается, если товар не найден в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrCategoryNotFound возвращается, если категория не найдена.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrCustomerNotFound возвращается, если клиент не найден.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrValidation — семейство ошибок валидации входных данных.
	ErrValidation = errors.New("validation failed")
	// ErrAlreadyExists сигнализирует о конфликте уникального ключа при создании записи.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrInsufficientStock — бизнес-ошибка: на складе меньше единиц, чем запрошено.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// ErrIdempotencyKeyRequired — пустой idempotency-key недопустим.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — пустой hash запроса недопустим.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — запись с таким ключом уже существует.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — ключ уже использован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key is used with different request hash")
	// ErrIdempotencyKeyNotFound — запись с таким ключом отсутствует.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
)

// InsufficientStockError уточняет ErrInsufficientStock: несёт идентификатор
// товара, которому не хватило остатка. Сопоставляется с ErrInsufficientStock
// через errors.Is.
type InsufficientStockError struct {
	ProductID string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s", e.ProductID)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// ValidationError агрегирует нарушенные инварианты входных данных.
// Сопоставляется с ErrValidation через errors.Is.
type ValidationError struct {
	Errs []error
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		parts = append(parts, err.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() []error {
	return e.Errs
}

// NewValidationError возвращает nil, если список нарушений пуст.
func NewValidationError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Errs: errs}
}

// IsNotFound проверяет, относится ли ошибка к семейству "запись не найдена".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrCategoryNotFound) ||
		errors.Is(err, ErrCustomerNotFound)
}
