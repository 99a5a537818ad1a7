package services

import "fmt"

// ProviderServiceError is raised when the provider API fails or returns an
// invalid value. Details carries a machine-checkable tag ("Order ID",
// "Payment token", "Auth token").
type ProviderServiceError struct {
	Message string
	Details string
}

func (e *ProviderServiceError) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Details, e.Message)
}

// SupportedCountryError is raised when the customer has no main address or
// their country has no configured currency mapping.
type SupportedCountryError struct {
	Message string
	Details string
}

func (e *SupportedCountryError) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Details, e.Message)
}

// WebhookServiceError is raised when webhook handling fails. Webhook failures
// always fail closed: no transaction mutation happens.
type WebhookServiceError struct {
	Message string
	Details string
}

func (e *WebhookServiceError) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Details, e.Message)
}

// OrchestrationError wraps a provider failure surfaced to the API caller
// after the transaction has been marked failed.
type OrchestrationError struct {
	Message string
	Details string
}

func (e *OrchestrationError) Error() string {
	if e.Details == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Details, e.Message)
}
