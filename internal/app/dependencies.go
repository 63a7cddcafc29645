package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/customer"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
)

// Dependencies содержит прикладные сервисы приложения.
type Dependencies struct {
	Orders    *order.Service
	Catalog   *catalog.Service
	Customers *customer.Service
	Metrics   *metrics.OrderMetrics
	Logger    *log.Entry
}

// NewDependencies собирает сервисы поверх выбранного хранилища.
func NewDependencies(runtime *runtimeDependencies, logger *log.Entry) *Dependencies {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	return &Dependencies{
		Orders:    order.NewService(runtime.orderStore, runtime.repo, runtime.historyRepo, logger.WithField("layer", "order-service")),
		Catalog:   catalog.NewService(runtime.products, runtime.categories, logger.WithField("layer", "catalog-service")),
		Customers: customer.NewService(runtime.customers, logger.WithField("layer", "customer-service")),
		Metrics:   metrics.NewOrderMetrics(),
		Logger:    logger,
	}
}
