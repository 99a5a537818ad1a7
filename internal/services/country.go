package services

import (
	"context"
	"log"

	"github.com/example/stackpay/internal/models"
	"github.com/example/stackpay/internal/repository"
)

// CountryCurrency resolves the customer's main address and the currency for
// its country. Missing main address or an unmapped country fail with a
// SupportedCountryError; the details tag distinguishes the two cases.
func CountryCurrency(ctx context.Context, customers repository.CustomerStore, customer *models.Customer, table map[string]string) (string, *models.Address, error) {
	address, err := customers.MainAddress(ctx, customer.ID)
	if err != nil {
		return "", nil, err
	}
	if address == nil {
		log.Printf("[PayMob] no main address specified for customer %s", customer.ID)
		return "", nil, &SupportedCountryError{
			Message: "there is no main address specified",
			Details: "Address",
		}
	}

	currency, ok := table[address.Country]
	if !ok {
		log.Printf("[PayMob] country %s is unsupported for customer %s", address.Country, customer.ID)
		return "", nil, &SupportedCountryError{
			Message: "country " + address.Country + " not supported",
			Details: "Currency",
		}
	}

	return currency, address, nil
}
