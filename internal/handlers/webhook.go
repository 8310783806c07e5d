package handlers

import (
	"context"

	"github.com/aws/aws-lambda-go/events"

	"retainer/internal/logging"
	"retainer/internal/orders"
	"retainer/internal/security"
)

type OrderProcessor interface {
	Process(ctx context.Context, d orders.Delivery) (*orders.Summary, error)
}

// OrderWebhook verifies and applies orders/create deliveries. It answers 200
// after verification even when processing fails so the platform stops retrying.
type OrderWebhook struct {
	Secret    string
	Processor OrderProcessor
}

func (h *OrderWebhook) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	body, err := rawBody(req)
	if err != nil {
		logging.Warn("webhook body decode failed", "err", err)
		return textResp(401, "unauthorized")
	}
	if !security.VerifyWebhook(h.Secret, body, header(req, "X-Shopify-Hmac-Sha256")) {
		logging.Warn("webhook signature rejected",
			"shop", header(req, "X-Shopify-Shop-Domain"),
			"webhook_id", header(req, "X-Shopify-Webhook-Id"),
			"secret_set", h.Secret != "")
		return textResp(401, "unauthorized")
	}

	topic := header(req, "X-Shopify-Topic")
	if topic == "" {
		topic = orders.TopicOrdersCreate
	}
	sum, err := h.Processor.Process(ctx, orders.Delivery{
		WebhookID:  header(req, "X-Shopify-Webhook-Id"),
		ShopDomain: header(req, "X-Shopify-Shop-Domain"),
		Topic:      topic,
		Body:       body,
	})
	if err != nil {
		logging.Error("order webhook failed", "webhook_id", header(req, "X-Shopify-Webhook-Id"), "err", err)
		return textResp(200, "error")
	}
	logging.Debug("order webhook done", "order_id", sum.OrderID, "duplicate", sum.Duplicate)
	return textResp(200, "ok")
}
