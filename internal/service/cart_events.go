package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storesync/internal/client/shopify"
	"storesync/internal/events"
	"storesync/internal/metrics"
	"storesync/internal/models"
	"storesync/internal/repository"
)

type CartStore interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	repository.EventRepository
	repository.AbandonmentRepository
}

type AbandonmentSettings struct {
	Delay       time.Duration
	BatchSize   int
	MaxAttempts int
}

// CartEventService records cart and checkout lifecycle events and decides,
// after a quiet period, whether an unconverted cart was abandoned.
type CartEventService struct {
	Store     CartStore
	Publisher events.Publisher
	Settings  AbandonmentSettings
	Logger    *zap.Logger

	Now func() time.Time
}

// CartSnapshot is stored with each cart event and abandonment check.
type CartSnapshot struct {
	CartToken          string                 `json:"cart_token"`
	Currency           string                 `json:"currency,omitempty"`
	TotalValue         string                 `json:"total_value"`
	ItemCount          int                    `json:"item_count"`
	CustomerExternalID string                 `json:"customer_external_id,omitempty"`
	Email              string                 `json:"email,omitempty"`
	LineItems          []shopify.CartLineItem `json:"line_items"`
}

type AbandonmentRunResult struct {
	Due        int `json:"due"`
	Abandoned  int `json:"abandoned"`
	Converted  int `json:"converted"`
	Progressed int `json:"progressed"`
	Duplicate  int `json:"duplicate"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

func (s *CartEventService) RecordCart(ctx context.Context, tenantID uint64, action string, cart shopify.Cart) error {
	snapshot := snapshotCart(cart)
	eventType := models.EventCartUpdated
	if action == "create" {
		eventType = models.EventCartCreated
	}
	occurred := cart.UpdatedAt.Time
	if occurred.IsZero() {
		occurred = s.now()
	}
	evt := &models.CustomEvent{
		TenantID:           tenantID,
		EventType:          eventType,
		CustomerExternalID: strPtr(snapshot.CustomerExternalID),
		CartToken:          strPtr(snapshot.CartToken),
		Payload:            mustJSON(snapshot),
		OccurredAt:         occurred,
	}
	if err := s.Store.InsertCustomEvent(ctx, evt); err != nil {
		return fmt.Errorf("record %s: %w", eventType, err)
	}
	if eventType == models.EventCartUpdated && len(cart.LineItems) > 0 {
		return s.ScheduleCheck(ctx, tenantID, snapshot, occurred, s.now().Add(s.delay()))
	}
	return nil
}

func (s *CartEventService) RecordCheckout(ctx context.Context, tenantID uint64, action string, co shopify.Checkout) error {
	eventType := models.EventCheckoutUpdated
	if action == "create" {
		eventType = models.EventCheckoutStarted
	}
	var customerID string
	email := deref(co.Email)
	if co.Customer != nil {
		customerID = co.Customer.ID.String()
		if email == "" {
			email = deref(co.Customer.Email)
		}
	}
	token := co.Token
	if token == "" {
		token = co.ID.String()
	}
	occurred := co.UpdatedAt.Time
	if occurred.IsZero() {
		occurred = s.now()
	}
	payload := map[string]any{
		"checkout_token":   token,
		"cart_token":       deref(co.CartToken),
		"email":            email,
		"currency":         co.Currency,
		"total_price":      parseMoney(co.TotalPrice).String(),
		"subtotal_price":   parseMoney(co.SubtotalPrice).String(),
		"line_items":       co.LineItems,
		"billing_address":  co.BillingAddress,
		"shipping_address": co.ShippingAddress,
		"completed_at":     co.CompletedAt.Ptr(),
	}
	evt := &models.CustomEvent{
		TenantID:           tenantID,
		EventType:          eventType,
		CustomerExternalID: strPtr(customerID),
		CartToken:          cleanPtr(co.CartToken),
		CheckoutToken:      strPtr(token),
		Payload:            mustJSON(payload),
		OccurredAt:         occurred,
	}
	if err := s.Store.InsertCustomEvent(ctx, evt); err != nil {
		return fmt.Errorf("record %s: %w", eventType, err)
	}
	return nil
}

// ScheduleCheck arms or re-arms the abandonment check for a cart.
func (s *CartEventService) ScheduleCheck(ctx context.Context, tenantID uint64, snapshot CartSnapshot, cartUpdatedAt, fireAt time.Time) error {
	if snapshot.CartToken == "" {
		return fmt.Errorf("schedule abandonment check: cart token is required")
	}
	check := &models.AbandonmentCheck{
		TenantID:           tenantID,
		CartToken:          snapshot.CartToken,
		CustomerExternalID: strPtr(snapshot.CustomerExternalID),
		CustomerEmail:      strPtr(snapshot.Email),
		CartUpdatedAt:      cartUpdatedAt.UTC(),
		FireAt:             fireAt.UTC(),
		Snapshot:           mustJSON(snapshot),
	}
	if err := s.Store.UpsertAbandonmentCheck(ctx, check); err != nil {
		return fmt.Errorf("schedule abandonment check: %w", err)
	}
	return nil
}

// CancelIfConverted settles pending checks the order converts.
func (s *CartEventService) CancelIfConverted(ctx context.Context, tenantID uint64, order shopify.Order) (int64, error) {
	q := repository.ActivityQuery{
		TenantID:  tenantID,
		CartToken: deref(order.CartToken),
		Email:     deref(order.Email),
	}
	if order.Customer != nil {
		q.CustomerExternalID = order.Customer.ID.String()
	}
	if !q.HasIdentity() {
		return 0, nil
	}
	convertedAt := order.CreatedAt.Time
	if convertedAt.IsZero() {
		convertedAt = s.now()
	}
	n, err := s.Store.CancelAbandonmentChecks(ctx, q, convertedAt)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.AbandonmentChecksTotal.WithLabelValues(models.CheckCancelled).Add(float64(n))
	}
	return n, nil
}

func (s *CartEventService) RunDueChecks(ctx context.Context) (AbandonmentRunResult, error) {
	var result AbandonmentRunResult
	due, err := s.Store.ListDueAbandonmentChecks(ctx, s.now(), s.Settings.BatchSize)
	if err != nil {
		return result, err
	}
	result.Due = len(due)
	for _, check := range due {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		status, err := s.EvaluateCheck(ctx, check)
		if err != nil {
			result.Failed++
			s.logger().Warn("abandonment check failed",
				zap.Uint64("tenant_id", check.TenantID),
				zap.String("cart_token", check.CartToken),
				zap.Error(err),
			)
			if rerr := s.Store.RecordAbandonmentCheckFailure(context.WithoutCancel(ctx), check.ID, err.Error(), s.Settings.MaxAttempts); rerr != nil {
				s.logger().Error("record abandonment check failure", zap.Error(rerr))
			}
			continue
		}
		switch status {
		case models.CheckAbandoned:
			result.Abandoned++
		case models.CheckConverted:
			result.Converted++
		case models.CheckProgressed:
			result.Progressed++
		case models.CheckDuplicate:
			result.Duplicate++
		default:
			result.Skipped++
		}
	}
	return result, nil
}

// EvaluateCheck settles one due check. An empty status means the check was
// no longer claimable.
func (s *CartEventService) EvaluateCheck(ctx context.Context, check models.AbandonmentCheck) (string, error) {
	now := s.now()
	var status string
	var abandonedEvent *models.CustomEvent
	err := s.Store.InTx(ctx, func(tx *gorm.DB) error {
		claimed, err := s.Store.ClaimAbandonmentCheckTx(ctx, tx, check.ID, now)
		if err != nil || !claimed {
			return err
		}
		q := repository.ActivityQuery{
			TenantID:           check.TenantID,
			CartToken:          check.CartToken,
			CustomerExternalID: deref(check.CustomerExternalID),
			Email:              deref(check.CustomerEmail),
			Since:              check.CartUpdatedAt,
		}

		dup, err := s.Store.HasCartEventTx(ctx, tx, check.TenantID, models.EventCartAbandoned, check.CartToken)
		if err != nil {
			return err
		}
		switch {
		case dup:
			status = models.CheckDuplicate
		default:
			converted, err := s.Store.HasOrderSinceTx(ctx, tx, q)
			if err != nil {
				return err
			}
			if converted {
				status = models.CheckConverted
				break
			}
			progressed, err := s.Store.HasCheckoutSinceTx(ctx, tx, q)
			if err != nil {
				return err
			}
			if progressed {
				status = models.CheckProgressed
				break
			}
			abandonedEvent = s.abandonedEvent(check, now)
			if err := s.Store.InsertCustomEventTx(ctx, tx, abandonedEvent); err != nil {
				return err
			}
			status = models.CheckAbandoned
		}
		return s.Store.ResolveAbandonmentCheckTx(ctx, tx, check.ID, status)
	})
	if err != nil {
		return "", err
	}
	if status == "" {
		return "", nil
	}
	metrics.AbandonmentChecksTotal.WithLabelValues(status).Inc()
	if abandonedEvent != nil {
		s.publish(ctx, check, abandonedEvent)
	}
	return status, nil
}

func (s *CartEventService) abandonedEvent(check models.AbandonmentCheck, now time.Time) *models.CustomEvent {
	var snapshot CartSnapshot
	if len(check.Snapshot) > 0 {
		_ = json.Unmarshal(check.Snapshot, &snapshot)
	}
	payload := map[string]any{
		"cart_token":      check.CartToken,
		"abandoned_value": snapshot.TotalValue,
		"currency":        snapshot.Currency,
		"item_count":      snapshot.ItemCount,
		"elapsed_seconds": int64(now.Sub(check.CartUpdatedAt).Seconds()),
		"cart_updated_at": check.CartUpdatedAt.UTC(),
		"line_items":      snapshot.LineItems,
	}
	if email := deref(check.CustomerEmail); email != "" {
		payload["email"] = email
	}
	return &models.CustomEvent{
		TenantID:           check.TenantID,
		EventType:          models.EventCartAbandoned,
		CustomerExternalID: check.CustomerExternalID,
		CartToken:          strPtr(check.CartToken),
		Payload:            mustJSON(payload),
		OccurredAt:         now,
	}
}

func (s *CartEventService) publish(ctx context.Context, check models.AbandonmentCheck, evt *models.CustomEvent) {
	if s.Publisher == nil {
		return
	}
	err := s.Publisher.Publish(ctx, events.Event{
		Type:       events.TypeCartAbandoned,
		TenantID:   check.TenantID,
		Key:        check.CartToken,
		OccurredAt: evt.OccurredAt,
		Payload:    json.RawMessage(evt.Payload),
	})
	if err != nil {
		s.logger().Warn("publish cart abandoned failed",
			zap.Uint64("tenant_id", check.TenantID),
			zap.String("cart_token", check.CartToken),
			zap.Error(err),
		)
	}
}

func (s *CartEventService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *CartEventService) delay() time.Duration {
	if s.Settings.Delay > 0 {
		return s.Settings.Delay
	}
	return 60 * time.Second
}

func (s *CartEventService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func snapshotCart(cart shopify.Cart) CartSnapshot {
	snap := CartSnapshot{
		CartToken: cart.CartToken(),
		Currency:  cart.Currency,
		LineItems: cart.LineItems,
	}
	if cart.Customer != nil {
		snap.CustomerExternalID = cart.Customer.ID.String()
		snap.Email = deref(cart.Customer.Email)
	}
	total := parseMoney(cart.TotalPrice)
	sum := decimal.Zero
	for _, li := range cart.LineItems {
		snap.ItemCount += li.Quantity
		line := parseMoney(li.LinePrice)
		if line.IsZero() {
			line = parseMoney(li.Price).Mul(decimal.NewFromInt(int64(li.Quantity)))
		}
		sum = sum.Add(line)
	}
	if total.IsZero() {
		total = sum
	}
	snap.TotalValue = total.StringFixed(2)
	return snap
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
