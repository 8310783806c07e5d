package shopify

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NameValue is a cart attribute or line-item property. Values are usually
// strings but the platform passes through whatever the storefront posted.
type NameValue struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// ValueString renders the value the way it would appear in the admin.
func (nv NameValue) ValueString() string {
	switch v := nv.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64, bool:
		return fmt.Sprint(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

type OrderLineItem struct {
	ID         json.Number `json:"id"`
	Title      string      `json:"title"`
	Quantity   int         `json:"quantity"`
	Properties []NameValue `json:"properties"`
}

type OrderCustomer struct {
	ID        json.Number `json:"id"`
	Email     string      `json:"email"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
}

// OrderWebhook is the subset of the orders/create REST payload this service reads.
type OrderWebhook struct {
	ID                json.Number     `json:"id"`
	AdminGraphQLAPIID string          `json:"admin_graphql_api_id"`
	Name              string          `json:"name"`
	Email             string          `json:"email"`
	ContactEmail      string          `json:"contact_email"`
	CreatedAt         string          `json:"created_at"`
	Currency          string          `json:"currency"`
	CurrentTotalPrice string          `json:"current_total_price"`
	TotalPrice        string          `json:"total_price"`
	Customer          *OrderCustomer  `json:"customer"`
	NoteAttributes    []NameValue     `json:"note_attributes"`
	LineItems         []OrderLineItem `json:"line_items"`
}

// GID returns the order's Admin GraphQL id.
func (o *OrderWebhook) GID() string {
	if strings.TrimSpace(o.AdminGraphQLAPIID) != "" {
		return o.AdminGraphQLAPIID
	}
	return OrderGID(o.ID.String())
}

// Total prefers current_total_price, falling back to total_price.
func (o *OrderWebhook) Total() string {
	if o.CurrentTotalPrice != "" {
		return o.CurrentTotalPrice
	}
	return o.TotalPrice
}
