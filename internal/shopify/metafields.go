package shopify

import (
	"context"
	"fmt"
)

// Metafield value types written by this service.
const (
	TypeDate      = "date"
	TypeBoolean   = "boolean"
	TypeInteger   = "number_integer"
	TypeJSON      = "json"
	TypeText      = "single_line_text_field"
	TypeMultiline = "multi_line_text_field"
	TypeTextList  = "list.single_line_text_field"
	TypeFileRef   = "file_reference"
)

// MaxMetafieldsPerCall is the metafieldsSet input limit.
const MaxMetafieldsPerCall = 25

type MetafieldInput struct {
	OwnerID   string `json:"ownerId"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     string `json:"value"`
}

type Metafield struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     string `json:"value"`
}

const metafieldsSetMutation = `
mutation MetafieldsSet($metafields: [MetafieldsSetInput!]!) {
  metafieldsSet(metafields: $metafields) {
    metafields { key namespace }
    userErrors { field message code }
  }
}`

type metafieldsSetData struct {
	MetafieldsSet struct {
		UserErrors []UserError `json:"userErrors"`
	} `json:"metafieldsSet"`
}

// SetMetafields writes in chunks of MaxMetafieldsPerCall. The first failing
// chunk stops the remaining ones; earlier chunks stay written.
func (c *Client) SetMetafields(ctx context.Context, fields []MetafieldInput) error {
	for start := 0; start < len(fields); start += MaxMetafieldsPerCall {
		end := start + MaxMetafieldsPerCall
		if end > len(fields) {
			end = len(fields)
		}
		data, err := AdminGraphQL[metafieldsSetData](ctx, c, metafieldsSetMutation, map[string]any{
			"metafields": fields[start:end],
		})
		if err != nil {
			return fmt.Errorf("metafieldsSet: %w", err)
		}
		if err := userErrs(data.MetafieldsSet.UserErrors); err != nil {
			return err
		}
	}
	return nil
}

const customerMetafieldsQuery = `
query CustomerMetafields($id: ID!, $ns: String!) {
  customer(id: $id) {
    ` + customerFields + `
    metafields(first: 100, namespace: $ns) {
      edges { node { namespace key type value } }
    }
  }
}`

type customerMetafieldsData struct {
	Customer *struct {
		Customer
		Metafields struct {
			Edges []struct {
				Node Metafield `json:"node"`
			} `json:"edges"`
		} `json:"metafields"`
	} `json:"customer"`
}

// CustomerMetafields loads a customer and its metafields in one namespace.
// A missing customer returns nil, nil, nil.
func (c *Client) CustomerMetafields(ctx context.Context, customerID, namespace string) (*Customer, []Metafield, error) {
	data, err := AdminGraphQL[customerMetafieldsData](ctx, c, customerMetafieldsQuery, map[string]any{
		"id": customerID,
		"ns": namespace,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("customer metafields: %w", err)
	}
	if data.Customer == nil {
		return nil, nil, nil
	}
	out := make([]Metafield, 0, len(data.Customer.Metafields.Edges))
	for _, e := range data.Customer.Metafields.Edges {
		out = append(out, e.Node)
	}
	cust := data.Customer.Customer
	return &cust, out, nil
}
