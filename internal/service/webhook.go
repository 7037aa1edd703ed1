package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"storesync/internal/limiter"
	"storesync/internal/models"
	"storesync/internal/repository"
)

type WebhookRequest struct {
	Topic      string
	ShopDomain string
	Signature  string
	Body       []byte
}

type WebhookResult struct {
	Topic     string `json:"topic"`
	TenantID  uint64 `json:"tenant_id,omitempty"`
	Processed bool   `json:"processed"`
	Skipped   string `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
}

// WebhookService verifies and dispatches inbound deliveries. Security and
// format failures are returned as errors; once a delivery is accepted, handler
// failures are recorded and reported in the result only.
type WebhookService struct {
	Tenants      repository.TenantRepository
	Limiter      limiter.Limiter
	Reconciler   *Reconciler
	Carts        *CartEventService
	Audit        *AuditService
	SharedSecret string
	Validate     *validator.Validate
	Logger       *zap.Logger
}

func (s *WebhookService) Handle(ctx context.Context, req WebhookRequest) (WebhookResult, error) {
	req.Topic = strings.ToLower(strings.TrimSpace(req.Topic))
	req.ShopDomain = strings.TrimSpace(req.ShopDomain)
	req.Signature = strings.TrimSpace(req.Signature)
	result := WebhookResult{Topic: req.Topic}
	if req.Topic == "" || req.ShopDomain == "" || req.Signature == "" {
		return result, ErrMissingWebhookHeaders
	}
	logger := s.logger().With(zap.String("topic", req.Topic), zap.String("shop", req.ShopDomain))

	if s.Limiter != nil {
		decision, err := s.Limiter.Allow(ctx, "webhook:"+req.ShopDomain)
		if err != nil {
			logger.Warn("webhook rate limiter unavailable", zap.Error(err))
		} else if !decision.Allowed {
			return result, &RateLimitedError{
				ShopDomain: req.ShopDomain,
				RetryAfter: int(math.Ceil(decision.RetryAfter.Seconds())),
			}
		}
	}

	tenant, err := s.Tenants.GetTenantByShopDomain(ctx, req.ShopDomain)
	if err != nil {
		return result, err
	}
	if tenant == nil {
		return result, ErrUnknownShop
	}
	result.TenantID = tenant.ID
	logger = logger.With(zap.Uint64("tenant_id", tenant.ID))
	started := time.Now()

	secret := tenant.WebhookSecret
	if secret == "" {
		secret = s.SharedSecret
	}
	if secret == "" {
		logger.Warn("webhook secret not configured, skipping signature check")
	} else if !VerifySignature(req.Body, secret, req.Signature) {
		logger.Warn("webhook signature mismatch")
		s.record(ctx, tenant.ID, req.Topic, started, 0, ErrInvalidSignature)
		return result, ErrInvalidSignature
	}

	if !tenant.IsActive {
		result.Skipped = "tenant inactive"
		logger.Info("webhook ignored for inactive tenant")
		s.record(ctx, tenant.ID, req.Topic, started, 0, nil)
		return result, nil
	}

	payload, err := DecodeWebhookPayload(req.Topic, req.Body, s.Validate)
	if err != nil {
		s.record(ctx, tenant.ID, req.Topic, started, 0, err)
		return result, err
	}

	records, skippedReason, err := s.dispatch(ctx, *tenant, req.Topic, payload)
	if err != nil {
		logger.Error("webhook handler failed", zap.Error(err))
		result.Error = err.Error()
		s.record(ctx, tenant.ID, req.Topic, started, 0, err)
		return result, nil
	}
	result.Processed = skippedReason == ""
	result.Skipped = skippedReason
	s.record(ctx, tenant.ID, req.Topic, started, records, nil)
	return result, nil
}

func (s *WebhookService) dispatch(ctx context.Context, tenant models.Tenant, topic string, payload WebhookPayload) (int, string, error) {
	_, action := SplitTopic(topic)
	switch p := payload.(type) {
	case OrderPayload:
		if _, err := s.Reconciler.UpsertOrder(ctx, tenant.ID, p.Order); err != nil {
			return 0, "", err
		}
		if action == "create" && s.Carts != nil {
			if _, err := s.Carts.CancelIfConverted(ctx, tenant.ID, p.Order); err != nil {
				s.logger().Warn("cancel abandonment checks failed", zap.Uint64("tenant_id", tenant.ID), zap.Error(err))
			}
		}
		return 1, "", nil
	case CustomerPayload:
		if _, err := s.Reconciler.UpsertCustomer(ctx, tenant.ID, p.Customer); err != nil {
			return 0, "", err
		}
		return 1, "", nil
	case ProductPayload:
		if _, err := s.Reconciler.UpsertProduct(ctx, tenant.ID, p.Product); err != nil {
			return 0, "", err
		}
		return 1, "", nil
	case CartPayload:
		if s.Carts == nil {
			return 0, "cart tracking disabled", nil
		}
		if err := s.Carts.RecordCart(ctx, tenant.ID, action, p.Cart); err != nil {
			return 0, "", err
		}
		return 1, "", nil
	case CheckoutPayload:
		if s.Carts == nil {
			return 0, "cart tracking disabled", nil
		}
		if err := s.Carts.RecordCheckout(ctx, tenant.ID, action, p.Checkout); err != nil {
			return 0, "", err
		}
		return 1, "", nil
	case DeletePayload:
		s.logger().Info("delete webhook acknowledged", zap.String("resource", p.Resource), zap.String("external_id", p.ID.String()))
		return 0, "deletes are not applied", nil
	case UnknownPayload:
		s.logger().Info("unhandled webhook topic", zap.String("topic", p.Topic))
		return 0, "unhandled topic", nil
	default:
		return 0, "", fmt.Errorf("unexpected payload %T", payload)
	}
}

func (s *WebhookService) record(ctx context.Context, tenantID uint64, topic string, started time.Time, records int, err error) {
	if s.Audit == nil {
		return
	}
	entry := &models.SyncLog{
		TenantID:         tenantID,
		SyncType:         models.WebhookSyncTypePrefix + topic,
		Success:          err == nil,
		RecordsProcessed: records,
		DurationMs:       time.Since(started).Milliseconds(),
	}
	if err != nil {
		entry.Error = strPtr(err.Error())
	}
	if werr := s.Audit.Record(context.WithoutCancel(ctx), entry); werr != nil {
		s.logger().Error("write webhook log failed", zap.Uint64("tenant_id", tenantID), zap.Error(werr))
	}
}

func (s *WebhookService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// VerifySignature checks a base64 HMAC-SHA256 of body in constant time.
func VerifySignature(body []byte, secret, signature string) bool {
	given, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), given)
}

// Sign returns the signature VerifySignature accepts.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// IsRateLimited unwraps a RateLimitedError.
func IsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
