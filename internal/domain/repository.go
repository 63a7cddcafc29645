package domain

import "context"

// ProductRepository описывает требования к хранилищу каталога товаров.
type ProductRepository interface {
	// Create сохраняет новый товар. Возвращает ErrAlreadyExists при конфликте ID.
	Create(product Product) error
	// Get возвращает товар по идентификатору или ErrProductNotFound.
	Get(id string) (Product, error)
	// List возвращает страницу товаров, отсортированных по имени.
	List(offset, limit int) ([]Product, error)
	// Update обновляет описательные поля товара. Поле Stock не трогает:
	// остаток меняется только через order workflow.
	Update(product Product) error
	// Delete удаляет товар вместе со связями с категориями.
	Delete(id string) (bool, error)
}

// CategoryRepository описывает хранилище категорий и связей товар-категория.
type CategoryRepository interface {
	Create(category Category) error
	Get(id string) (Category, error)
	List() ([]Category, error)
	Update(category Category) error
	Delete(id string) (bool, error)
	// Assign связывает товар с категорией; повторное связывание — no-op.
	Assign(link ProductCategory) error
	// Unassign разрывает связь; отсутствие связи — не ошибка.
	Unassign(link ProductCategory) (bool, error)
	// ProductsByCategory возвращает идентификаторы товаров категории.
	ProductsByCategory(categoryID string) ([]string, error)
	// CategoriesOfProduct возвращает идентификаторы категорий товара.
	CategoriesOfProduct(productID string) ([]string, error)
}

// CustomerRepository описывает хранилище клиентов.
type CustomerRepository interface {
	Create(customer Customer) error
	Get(id string) (Customer, error)
	// GetByEmail возвращает клиента по email или ErrCustomerNotFound.
	GetByEmail(email string) (Customer, error)
	List() ([]Customer, error)
	Update(customer Customer) error
	Delete(id string) (bool, error)
}

// OrderRepository описывает read-доступ к заказам вне workflow-транзакции.
type OrderRepository interface {
	// Get возвращает заказ с позициями или ErrOrderNotFound.
	Get(id string) (Order, error)
	// List возвращает последние заказы, ограничивая выборку limit (если >0).
	List(limit int) ([]Order, error)
	// ListByCustomer возвращает заказы клиента от новых к старым.
	ListByCustomer(customerID string, limit int) ([]Order, error)
}

// OrderTx — транзакция order workflow. Все операции выполняются на одном
// соединении с хранилищем; ошибка любой из них откатывает транзакцию целиком.
type OrderTx interface {
	// CustomerExists проверяет наличие клиента.
	CustomerExists(id string) (bool, error)
	// GetOrder возвращает заказ с позициями или ErrOrderNotFound.
	GetOrder(id string) (Order, error)
	// InsertOrder сохраняет новый заказ вместе с позициями.
	InsertOrder(order Order) error
	// ReplaceOrder перезаписывает заказ, полностью заменяя набор позиций.
	ReplaceOrder(order Order) error
	// DeleteOrder удаляет заказ и его позиции; false — заказа не было.
	DeleteOrder(id string) (bool, error)
	// ReserveStock атомарно уменьшает остаток товара на qty.
	// Возвращает ErrProductNotFound либо InsufficientStockError,
	// если остаток меньше запрошенного количества.
	ReserveStock(productID string, qty int32) error
	// RestoreStock атомарно возвращает qty единиц на остаток товара.
	RestoreStock(productID string, qty int32) error
	// EnqueueOutbox сохраняет событие в transactional outbox в рамках той же транзакции.
	EnqueueOutbox(msg OutboxMessage) (OutboxMessage, error)
	// AppendHistory добавляет событие истории заказа в рамках той же транзакции.
	AppendHistory(event HistoryEvent) error
}

// OrderStore выполняет мутации заказов внутри одной транзакции хранилища.
// Транзакция коммитится, если fn вернула nil, и откатывается иначе.
type OrderStore interface {
	WithinTx(ctx context.Context, fn func(tx OrderTx) error) error
}
