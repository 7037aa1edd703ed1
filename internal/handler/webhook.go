package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storesync/internal/metrics"
	"storesync/internal/service"
)

const (
	headerTopic     = "X-Shopify-Topic"
	headerShop      = "X-Shopify-Shop-Domain"
	headerSignature = "X-Shopify-Hmac-Sha256"
	headerWebhookID = "X-Shopify-Webhook-Id"
)

type WebhookHandler struct {
	Service     *service.WebhookService
	MaxBodySize int64
	Logger      *zap.Logger
}

func (h *WebhookHandler) Register(r *gin.Engine) {
	r.POST("/webhooks/shopify", h.receive)
}

// @Summary Receive a platform webhook
// @Description Verifies the HMAC signature, applies the payload for the owning tenant and records an audit entry.
// @Tags webhooks
// @Accept json
// @Param X-Shopify-Topic header string true "topic, e.g. orders/create"
// @Param X-Shopify-Shop-Domain header string true "shop domain"
// @Param X-Shopify-Hmac-Sha256 header string true "base64 HMAC-SHA256 of the raw body"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Failure 401 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Failure 429 {object} map[string]any
// @Router /webhooks/shopify [post]
func (h *WebhookHandler) receive(c *gin.Context) {
	started := time.Now()
	topic := strings.TrimSpace(c.GetHeader(headerTopic))
	family, _ := service.SplitTopic(topic)
	if family == "" {
		family = "unknown"
	}
	deliveryID := strings.TrimSpace(c.GetHeader(headerWebhookID))
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}
	logger := h.logger().With(zap.String("delivery_id", deliveryID), zap.String("topic", topic))

	status := http.StatusOK
	defer func() {
		metrics.WebhookRequestsTotal.WithLabelValues(family, strconv.Itoa(status)).Inc()
		metrics.WebhookProcessingDuration.Observe(time.Since(started).Seconds())
	}()

	if h.Service == nil {
		status = http.StatusServiceUnavailable
		c.JSON(status, gin.H{"success": false, "error": "webhooks unavailable"})
		return
	}

	limit := h.MaxBodySize
	if limit <= 0 {
		limit = 5 << 20
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		status = http.StatusBadRequest
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, gin.H{"success": false, "error": "unreadable body"})
		return
	}

	result, err := h.Service.Handle(c.Request.Context(), service.WebhookRequest{
		Topic:      topic,
		ShopDomain: c.GetHeader(headerShop),
		Signature:  c.GetHeader(headerSignature),
		Body:       body,
	})
	if err != nil {
		status = webhookErrorStatus(err)
		if rl, ok := service.IsRateLimited(err); ok {
			c.Header("Retry-After", strconv.Itoa(rl.RetryAfter))
		}
		if status >= http.StatusInternalServerError {
			logger.Error("webhook failed", zap.Error(err))
		} else {
			logger.Info("webhook rejected", zap.Int("status", status), zap.Error(err))
		}
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}

	resp := gin.H{"success": result.Error == "", "processed": result.Topic}
	if result.Skipped != "" {
		resp["skipped"] = result.Skipped
	}
	if result.Error != "" {
		resp["error"] = result.Error
	}
	c.JSON(status, resp)
}

func (h *WebhookHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func webhookErrorStatus(err error) int {
	if _, ok := service.IsRateLimited(err); ok {
		return http.StatusTooManyRequests
	}
	switch {
	case errors.Is(err, service.ErrMissingWebhookHeaders), errors.Is(err, service.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrUnknownShop):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
