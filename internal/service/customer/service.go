package customer

import (
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Input — поля клиента в командах создания и обновления.
type Input struct {
	FirstName string
	LastName  string
	Email     string
}

// Service обслуживает справочник клиентов.
type Service struct {
	customers domain.CustomerRepository
	logger    *log.Entry
}

// NewService конструирует сервис клиентов.
func NewService(customers domain.CustomerRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "customer-service")
	}
	return &Service{
		customers: customers,
		logger:    logger,
	}
}

// Create регистрирует клиента. Email должен быть уникален.
func (s *Service) Create(input Input) (domain.Customer, error) {
	now := time.Now().UTC()
	customer := domain.Customer{
		ID:        uuid.NewString(),
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Email:     strings.TrimSpace(input.Email),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := domain.NewValidationError(customer.Validate()); err != nil {
		return domain.Customer{}, err
	}

	if err := s.customers.Create(customer); err != nil {
		s.logger.WithError(err).WithField("customer_id", customer.ID).Error("failed to create customer")
		return domain.Customer{}, err
	}

	return customer, nil
}

// Get возвращает клиента по идентификатору.
func (s *Service) Get(id string) (domain.Customer, error) {
	return s.customers.Get(id)
}

// GetByEmail возвращает клиента по email без учёта регистра.
func (s *Service) GetByEmail(email string) (domain.Customer, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.Customer{}, domain.NewValidationError([]error{domain.ErrCustomerEmailInvalid})
	}
	return s.customers.GetByEmail(email)
}

// List возвращает всех клиентов.
func (s *Service) List() ([]domain.Customer, error) {
	return s.customers.List()
}

// Update обновляет данные клиента.
func (s *Service) Update(id string, input Input) (domain.Customer, error) {
	customer := domain.Customer{
		ID:        id,
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Email:     strings.TrimSpace(input.Email),
		UpdatedAt: time.Now().UTC(),
	}

	if err := domain.NewValidationError(customer.Validate()); err != nil {
		return domain.Customer{}, err
	}

	if err := s.customers.Update(customer); err != nil {
		s.logger.WithError(err).WithField("customer_id", id).Warn("failed to update customer")
		return domain.Customer{}, err
	}

	return s.customers.Get(id)
}

// Delete удаляет клиента. Возвращает false, если клиента не было.
func (s *Service) Delete(id string) (bool, error) {
	deleted, err := s.customers.Delete(id)
	if err != nil {
		s.logger.WithError(err).WithField("customer_id", id).Error("failed to delete customer")
		return false, err
	}
	return deleted, nil
}
