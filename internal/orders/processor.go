package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"retainer/internal/intake"
	"retainer/internal/logging"
	"retainer/internal/shopify"
)

const TopicOrdersCreate = "orders/create"

// Platform is the subset of the Shopify client the webhook needs.
type Platform interface {
	FindCustomerByEmail(ctx context.Context, email string) (*shopify.Customer, error)
	CustomerMetafields(ctx context.Context, customerID, namespace string) (*shopify.Customer, []shopify.Metafield, error)
	SetMetafields(ctx context.Context, fields []shopify.MetafieldInput) error
}

type Claimer interface {
	Claim(ctx context.Context, webhookID, shopDomain, topic string) (bool, error)
	Release(ctx context.Context, webhookID string) error
}

type Notifier interface {
	Notify(ctx context.Context, s Summary) error
}

// Delivery is one verified webhook call.
type Delivery struct {
	WebhookID  string
	ShopDomain string
	Topic      string
	Body       []byte
}

// Summary describes what a delivery changed.
type Summary struct {
	WebhookID  string
	ShopDomain string
	Topic      string
	OrderID    string
	OrderName  string
	CustomerID string
	Email      string
	Plan       string
	Term       string
	Total      string
	Currency   string
	CreatedAt  string
	Metafields int
	Mirrored   int
	Duplicate  bool
}

type Processor struct {
	Platform  Platform
	Namespace string
	Ledger    Claimer
	Notifier  Notifier
}

func NewProcessor(p Platform, namespace string, ledger Claimer, notifier Notifier) *Processor {
	if namespace == "" {
		namespace = "retainer"
	}
	return &Processor{Platform: p, Namespace: namespace, Ledger: ledger, Notifier: notifier}
}

var ErrNoOrderID = errors.New("order payload has no id")

// Process applies one order webhook: order metafields from the attributes,
// mirrored customer metafields, then the customer's last-plan snapshot.
// A delivery that fails after being claimed is released so a redelivery
// is processed again.
func (p *Processor) Process(ctx context.Context, d Delivery) (*Summary, error) {
	sum := &Summary{WebhookID: d.WebhookID, ShopDomain: d.ShopDomain, Topic: d.Topic}

	claimed := false
	if p.Ledger != nil {
		dup, err := p.Ledger.Claim(ctx, d.WebhookID, d.ShopDomain, d.Topic)
		if err != nil {
			logging.Warn("webhook dedupe failed", "webhook_id", d.WebhookID, "err", err)
		} else if dup {
			logging.Info("duplicate webhook skipped", "webhook_id", d.WebhookID)
			sum.Duplicate = true
			return sum, nil
		} else {
			claimed = true
		}
	}

	if err := p.process(ctx, d, sum); err != nil {
		if claimed {
			if rerr := p.Ledger.Release(ctx, d.WebhookID); rerr != nil {
				logging.Warn("webhook release failed", "webhook_id", d.WebhookID, "err", rerr)
			}
		}
		return sum, err
	}
	return sum, nil
}

func (p *Processor) process(ctx context.Context, d Delivery, sum *Summary) error {
	var order shopify.OrderWebhook
	if err := json.Unmarshal(d.Body, &order); err != nil {
		return fmt.Errorf("decode order: %w", err)
	}
	orderID := order.GID()
	if shopify.NumericID(orderID) == "" {
		return ErrNoOrderID
	}
	sum.OrderID = orderID
	sum.OrderName = order.Name
	sum.Total = order.Total()
	sum.Currency = order.Currency
	sum.CreatedAt = order.CreatedAt

	notes, props := Attributes(&order)
	attrs := Reconcile(notes, props)
	sum.Plan, _ = lookup(attrs, []string{"retainer_plan", "plan"})
	sum.Term, _ = lookup(attrs, []string{"retainer_term", "term"})
	sum.Email = orderEmail(&order, attrs)

	customerID, err := p.resolveCustomer(ctx, &order, sum.Email)
	if err != nil {
		return err
	}

	fields := OrderMetafields(orderID, p.Namespace, attrs)
	var stored []shopify.Metafield
	if customerID != "" {
		cust, mfs, err := p.Platform.CustomerMetafields(ctx, customerID, p.Namespace)
		if err != nil {
			return err
		}
		if cust == nil {
			logging.Warn("order customer not found", "order", order.Name, "customer_id", customerID)
			customerID = ""
		} else {
			stored = mfs
		}
	}
	mirrored := Mirror(orderID, fields, stored)
	fields = append(fields, mirrored...)
	sum.CustomerID = customerID
	sum.Mirrored = len(mirrored)
	sum.Metafields = len(fields)

	if len(fields) > 0 {
		if err := p.Platform.SetMetafields(ctx, fields); err != nil {
			return fmt.Errorf("order metafields: %w", err)
		}
	}

	if customerID != "" {
		plan := fallback(sum.Plan, stored, "retainer_plan")
		term := fallback(sum.Term, stored, "retainer_term")
		if snap := p.snapshot(customerID, plan, term, order.Name); len(snap) > 0 {
			if err := p.Platform.SetMetafields(ctx, snap); err != nil {
				return fmt.Errorf("customer snapshot: %w", err)
			}
		}
	}

	logging.Info("order synced",
		"order", order.Name, "order_id", orderID, "customer_id", customerID,
		"metafields", sum.Metafields, "mirrored", sum.Mirrored)

	if p.Notifier != nil {
		if err := p.Notifier.Notify(ctx, *sum); err != nil {
			logging.Warn("order notification failed", "order", order.Name, "err", err)
		}
	}
	return nil
}

func (p *Processor) resolveCustomer(ctx context.Context, order *shopify.OrderWebhook, email string) (string, error) {
	if order.Customer != nil {
		if id := strings.TrimSpace(order.Customer.ID.String()); id != "" && id != "0" {
			return shopify.CustomerGID(id), nil
		}
	}
	if email == "" {
		return "", nil
	}
	cust, err := p.Platform.FindCustomerByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("lookup order customer: %w", err)
	}
	if cust == nil {
		return "", nil
	}
	return cust.ID, nil
}

func (p *Processor) snapshot(customerID, plan, term, orderName string) []shopify.MetafieldInput {
	var out []shopify.MetafieldInput
	add := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		out = append(out, shopify.MetafieldInput{
			OwnerID:   customerID,
			Namespace: p.Namespace,
			Key:       key,
			Type:      shopify.TypeText,
			Value:     value,
		})
	}
	add("last_retainer_plan", plan)
	add("last_retainer_term", term)
	add("last_order_name", orderName)
	return out
}

func orderEmail(order *shopify.OrderWebhook, attrs map[string]string) string {
	candidates := []string{order.Email, order.ContactEmail}
	if order.Customer != nil {
		candidates = append(candidates, order.Customer.Email)
	}
	candidates = append(candidates, attrs["email"], attrs["intake_email"])
	for _, c := range candidates {
		if e := intake.NormalizeEmail(c); intake.ValidEmail(e) {
			return e
		}
	}
	return ""
}

func fallback(v string, stored []shopify.Metafield, key string) string {
	if v != "" {
		return v
	}
	for _, m := range stored {
		if m.Key == key {
			return m.Value
		}
	}
	return ""
}
