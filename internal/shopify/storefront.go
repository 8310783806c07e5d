package shopify

import (
	"context"
	"fmt"
)

type StorefrontCustomerInput struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	FirstName        string `json:"firstName,omitempty"`
	LastName         string `json:"lastName,omitempty"`
	Phone            string `json:"phone,omitempty"`
	AcceptsMarketing bool   `json:"acceptsMarketing"`
}

const storefrontCustomerCreate = `
mutation customerCreate($input: CustomerCreateInput!) {
  customerCreate(input: $input) {
    customer { id email firstName lastName }
    customerUserErrors { code field message }
  }
}`

type storefrontCreateData struct {
	CustomerCreate struct {
		Customer           *Customer   `json:"customer"`
		CustomerUserErrors []UserError `json:"customerUserErrors"`
	} `json:"customerCreate"`
}

// StorefrontCreateCustomer creates an enabled account with a user-chosen password.
func (c *Client) StorefrontCreateCustomer(ctx context.Context, in StorefrontCustomerInput) (*Customer, error) {
	if c.StorefrontToken == "" {
		return nil, fmt.Errorf("SHOPIFY_STOREFRONT_TOKEN not set")
	}
	data, err := StorefrontGraphQL[storefrontCreateData](ctx, c, storefrontCustomerCreate, map[string]any{"input": in})
	if err != nil {
		return nil, fmt.Errorf("storefront customerCreate: %w", err)
	}
	if err := userErrs(data.CustomerCreate.CustomerUserErrors); err != nil {
		return nil, err
	}
	if data.CustomerCreate.Customer == nil {
		return nil, fmt.Errorf("storefront customerCreate: no customer returned")
	}
	return data.CustomerCreate.Customer, nil
}
