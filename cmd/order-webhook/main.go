package main

import (
	"context"
	stdlog "log"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"retainer/internal/app"
	"retainer/internal/db"
	"retainer/internal/handlers"
	"retainer/internal/orders"
	"retainer/internal/shopify"
)

func main() {
	ctx := context.Background()

	s, awsCfg, err := app.Bootstrap(ctx)
	if err != nil {
		stdlog.Fatalf("bootstrap: %v", err)
	}
	if err := s.RequireShopify(); err != nil {
		stdlog.Fatalf("config: %v", err)
	}

	var ledger orders.Claimer
	if s.WebhookDedupeTable != "" {
		ledger = &shopify.DeliveryLedger{
			DB:    db.NewDynamoClient(awsCfg),
			Table: s.WebhookDedupeTable,
			TTL:   7 * 24 * time.Hour,
		}
	}

	var notifier orders.Notifier
	if s.AlertsTopicArn != "" {
		notifier = orders.NewSNSNotifier(sns.NewFromConfig(awsCfg), s.AlertsTopicArn)
	}

	h := &handlers.OrderWebhook{
		Secret:    s.WebhookSecret,
		Processor: orders.NewProcessor(app.ShopifyClient(s), s.Namespace, ledger, notifier),
	}
	lambda.Start(h.Handle)
}
