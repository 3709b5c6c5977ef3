package handlers

import (
	"errors"
	"net/http"

	"learnplatform/internal/domain"
	"learnplatform/internal/service"

	"github.com/gin-gonic/gin"
)

type WebhookHandler struct {
	webhooks *service.WebhookService
}

func NewWebhookHandler(webhooks *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// POST /api/v1/payments/webhook
// Не-2xx отдаем ТОЛЬКО на retryable-сбое записи: шлюз повторяет доставку
// по своему расписанию. Невалидный payload подтверждаем, чтобы не получать
// его вечно.
func (h *WebhookHandler) Handle(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	result, err := h.webhooks.Process(c, body, c.GetHeader("X-Razorpay-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrGatewayUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payment gateway is not configured"})
		case errors.Is(err, domain.ErrInvalidSignature):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook signature"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database update failed during webhook processing"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}
