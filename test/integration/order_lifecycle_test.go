package integration

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/customer"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

// capturingPublisher собирает опубликованные outbox-события вместо Kafka.
type capturingPublisher struct {
	mu     sync.Mutex
	events []domain.OutboxMessage
}

func (p *capturingPublisher) Publish(event domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) snapshot() []domain.OutboxMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.OutboxMessage, len(p.events))
	copy(out, p.events)
	return out
}

// OrderLifecycleTestSuite прогоняет полный путь заказа на memory-хранилище:
// каталог и клиенты через сервисы, заказ через Kafka command handler,
// публикация событий через outbox worker.
type OrderLifecycleTestSuite struct {
	suite.Suite
	store     *memory.Store
	catalog   *catalog.Service
	customers *customer.Service
	orders    *order.Service
	handler   *kafka.OrderCommandHandler
	outboxes  domain.OutboxRepository
	history   domain.HistoryRepository
	idemRepo  domain.IdempotencyRepository
}

func (suite *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	suite.store = memory.NewStore()
	suite.outboxes = memory.NewOutboxRepository(suite.store)
	suite.history = memory.NewHistoryRepository(suite.store)
	suite.idemRepo = memory.NewIdempotencyRepository(suite.store)

	suite.catalog = catalog.NewService(
		memory.NewProductRepository(suite.store),
		memory.NewCategoryRepository(suite.store),
		logger,
	)
	suite.customers = customer.NewService(memory.NewCustomerRepository(suite.store), logger)
	suite.orders = order.NewService(
		memory.NewOrderStore(suite.store),
		memory.NewOrderRepository(suite.store),
		suite.history,
		logger,
	)
	suite.handler = kafka.NewOrderCommandHandler(suite.orders, suite.idemRepo, metrics.NewOrderMetrics())
}

func (suite *OrderLifecycleTestSuite) seedCatalog(stock int32) (domain.Customer, domain.Product) {
	created, err := suite.customers.Create(customer.Input{
		FirstName: "Мария",
		LastName:  "Ветрова",
		Email:     "maria.vetrova@example.com",
	})
	require.NoError(suite.T(), err)

	product, err := suite.catalog.CreateProduct(catalog.ProductInput{
		Name:       "Чайник керамический",
		PriceMinor: 2500,
		Stock:      stock,
	})
	require.NoError(suite.T(), err)

	return created, product
}

func (suite *OrderLifecycleTestSuite) placeCommand(key, customerID, productID string, qty int32) *sarama.ConsumerMessage {
	value, err := json.Marshal(kafka.OrderCommand{
		CommandType:    kafka.CommandTypeOrderPlace,
		IdempotencyKey: key,
		CustomerID:     customerID,
		OrderDate:      time.Now().UTC(),
		Lines: []kafka.CommandLine{
			{ProductID: productID, Qty: qty, PriceMinor: 2500},
		},
	})
	require.NoError(suite.T(), err)

	return &sarama.ConsumerMessage{
		Topic: kafka.TopicOrderCommands,
		Key:   []byte(customerID),
		Value: value,
	}
}

func (suite *OrderLifecycleTestSuite) TestPlaceOrderThroughCommandHandler() {
	cust, product := suite.seedCatalog(10)

	msg := suite.placeCommand("it-place-1", cust.ID, product.ID, 4)
	require.NoError(suite.T(), suite.handler.Handle(context.Background(), msg))

	orders, err := suite.orders.ListByCustomer(context.Background(), cust.ID, 10)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), orders, 1)
	require.Equal(suite.T(), cust.ID, orders[0].CustomerID)
	require.Len(suite.T(), orders[0].Lines, 1)
	require.Equal(suite.T(), int32(4), orders[0].Lines[0].Qty)

	updated, err := suite.catalog.GetProduct(product.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(6), updated.Stock)

	fetched, trail, err := suite.orders.Get(context.Background(), orders[0].ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), orders[0].ID, fetched.ID)
	require.Len(suite.T(), trail, 1)
	require.Equal(suite.T(), domain.HistoryEventOrderCreated, trail[0].Type)

	stats, err := suite.outboxes.Stats()
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 1, stats.PendingCount)

	record, err := suite.idemRepo.Get("it-place-1")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.IdempotencyStatusDone, record.Status)
}

func (suite *OrderLifecycleTestSuite) TestCommandRedeliveryIsIdempotent() {
	cust, product := suite.seedCatalog(10)

	msg := suite.placeCommand("it-redelivery-1", cust.ID, product.ID, 4)
	require.NoError(suite.T(), suite.handler.Handle(context.Background(), msg))
	require.NoError(suite.T(), suite.handler.Handle(context.Background(), msg))

	orders, err := suite.orders.ListByCustomer(context.Background(), cust.ID, 10)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), orders, 1, "redelivery must not create a second order")

	updated, err := suite.catalog.GetProduct(product.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(6), updated.Stock, "stock must be reserved exactly once")
}

func (suite *OrderLifecycleTestSuite) TestInsufficientStockRejectsAtomically() {
	cust, product := suite.seedCatalog(2)

	second, err := suite.catalog.CreateProduct(catalog.ProductInput{
		Name:       "Кружка",
		PriceMinor: 700,
		Stock:      50,
	})
	require.NoError(suite.T(), err)

	value, err := json.Marshal(kafka.OrderCommand{
		CommandType:    kafka.CommandTypeOrderPlace,
		IdempotencyKey: "it-shortage-1",
		CustomerID:     cust.ID,
		Lines: []kafka.CommandLine{
			{ProductID: second.ID, Qty: 3, PriceMinor: 700},
			{ProductID: product.ID, Qty: 5, PriceMinor: 2500},
		},
	})
	require.NoError(suite.T(), err)

	msg := &sarama.ConsumerMessage{
		Topic: kafka.TopicOrderCommands,
		Key:   []byte(cust.ID),
		Value: value,
	}

	// Бизнес-отказ фиксируется и подтверждается, повтор не нужен.
	require.NoError(suite.T(), suite.handler.Handle(context.Background(), msg))

	orders, err := suite.orders.ListByCustomer(context.Background(), cust.ID, 10)
	require.NoError(suite.T(), err)
	require.Empty(suite.T(), orders)

	untouched, err := suite.catalog.GetProduct(second.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(50), untouched.Stock, "reservation of the first line must roll back")

	record, err := suite.idemRepo.Get("it-shortage-1")
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.IdempotencyStatusFailed, record.Status)
}

func (suite *OrderLifecycleTestSuite) TestUpdateAdjustsStockByDelta() {
	cust, product := suite.seedCatalog(10)

	created, err := suite.orders.Create(context.Background(), order.CreateInput{
		CustomerID: cust.ID,
		Lines:      []order.LineInput{{ProductID: product.ID, Qty: 4, PriceMinor: 2500}},
	})
	require.NoError(suite.T(), err)

	_, err = suite.orders.Update(context.Background(), order.UpdateInput{
		OrderID:    created.ID,
		CustomerID: cust.ID,
		Lines:      []order.LineInput{{ProductID: product.ID, Qty: 1, PriceMinor: 2500}},
	})
	require.NoError(suite.T(), err)

	updated, err := suite.catalog.GetProduct(product.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(9), updated.Stock, "shrinking the order returns the delta")

	events, err := suite.history.List(created.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), events, 2)
	require.Equal(suite.T(), domain.HistoryEventOrderUpdated, events[1].Type)
}

func (suite *OrderLifecycleTestSuite) TestDeleteConsumesReservedStock() {
	cust, product := suite.seedCatalog(10)

	created, err := suite.orders.Create(context.Background(), order.CreateInput{
		CustomerID: cust.ID,
		Lines:      []order.LineInput{{ProductID: product.ID, Qty: 4, PriceMinor: 2500}},
	})
	require.NoError(suite.T(), err)

	deleted, err := suite.orders.Delete(context.Background(), created.ID)
	require.NoError(suite.T(), err)
	require.True(suite.T(), deleted)

	_, _, err = suite.orders.Get(context.Background(), created.ID)
	require.True(suite.T(), domain.IsNotFound(err))

	after, err := suite.catalog.GetProduct(product.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), int32(6), after.Stock, "deleting the order does not restore stock")

	events, err := suite.history.List(created.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), events, 2)
	require.Equal(suite.T(), domain.HistoryEventOrderDeleted, events[1].Type)
}

func (suite *OrderLifecycleTestSuite) TestOutboxWorkerPublishesOrderEvents() {
	cust, product := suite.seedCatalog(10)

	_, err := suite.orders.Create(context.Background(), order.CreateInput{
		CustomerID: cust.ID,
		Lines:      []order.LineInput{{ProductID: product.ID, Qty: 2, PriceMinor: 2500}},
	})
	require.NoError(suite.T(), err)

	publisher := &capturingPublisher{}
	worker := outbox.NewWorker(
		suite.outboxes,
		publisher,
		outbox.WithPollInterval(5*time.Millisecond),
		outbox.WithBatchSize(10),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	require.Eventually(suite.T(), func() bool {
		return len(publisher.snapshot()) >= 1
	}, 2*time.Second, 10*time.Millisecond, "outbox worker must publish the pending event")

	cancel()
	<-done

	events := publisher.snapshot()
	require.Equal(suite.T(), "OrderCreated", events[0].EventType)
	require.Equal(suite.T(), "order", events[0].AggregateType)

	stats, err := suite.outboxes.Stats()
	require.NoError(suite.T(), err)
	require.Zero(suite.T(), stats.PendingCount)
}

func (suite *OrderLifecycleTestSuite) TestCatalogDirectoryRoundTrip() {
	category, err := suite.catalog.CreateCategory("Посуда")
	require.NoError(suite.T(), err)

	product, err := suite.catalog.CreateProduct(catalog.ProductInput{
		Name:       "Тарелка глубокая",
		PriceMinor: 900,
		Stock:      5,
	})
	require.NoError(suite.T(), err)

	require.NoError(suite.T(), suite.catalog.AssignProduct(product.ID, category.ID))

	inCategory, err := suite.catalog.ProductsInCategory(category.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), inCategory, 1)
	require.Equal(suite.T(), product.ID, inCategory[0].ID)

	unassigned, err := suite.catalog.UnassignProduct(product.ID, category.ID)
	require.NoError(suite.T(), err)
	require.True(suite.T(), unassigned)

	inCategory, err = suite.catalog.ProductsInCategory(category.ID)
	require.NoError(suite.T(), err)
	require.Empty(suite.T(), inCategory)
}

func TestOrderLifecycleSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
