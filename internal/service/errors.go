package service

import (
	"errors"
	"fmt"
)

var (
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrTenantNotConfigured = errors.New("tenant is not configured for sync")
	ErrTenantInactive      = fmt.Errorf("%w: tenant is inactive", ErrTenantNotConfigured)
	ErrUnsupportedSyncType = errors.New("unsupported sync type")
	ErrSyncInProgress      = errors.New("sync already in progress")

	ErrMissingWebhookHeaders = errors.New("missing required webhook headers")
	ErrUnknownShop           = errors.New("unknown shop domain")
	ErrInvalidSignature      = errors.New("invalid webhook signature")
	ErrInvalidPayload        = errors.New("invalid webhook payload")
)

// RateLimitedError is returned when a shop exceeds its webhook budget.
type RateLimitedError struct {
	ShopDomain string
	RetryAfter int // seconds
}

func (e *RateLimitedError) Error() string {
	return "webhook rate limit exceeded for " + e.ShopDomain
}
