package domain

import (
	"strings"
	"time"
)

// Customer описывает клиента магазина.
type Customer struct {
	ID        string
	FirstName string
	LastName  string
	// Email используется для поиска клиента; уникальность обеспечивает хранилище.
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет обязательные поля клиента.
func (c *Customer) Validate() []error {
	var errs []error

	if c.FirstName == "" {
		errs = append(errs, ErrCustomerFirstNameRequired)
	}
	if c.LastName == "" {
		errs = append(errs, ErrCustomerLastNameRequired)
	}
	if !strings.Contains(c.Email, "@") {
		errs = append(errs, ErrCustomerEmailInvalid)
	}

	return errs
}
