package shopify

import (
	"context"
	"fmt"
	"strings"
)

// Customer account states reported by the Admin API.
const (
	StateDisabled = "DISABLED"
	StateEnabled  = "ENABLED"
)

type Customer struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	State     string `json:"state"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

type MailingAddressInput struct {
	Address1 string `json:"address1,omitempty"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city,omitempty"`
	Province string `json:"province,omitempty"`
	Zip      string `json:"zip,omitempty"`
	Country  string `json:"country,omitempty"`
}

func (a MailingAddressInput) IsZero() bool {
	return a == MailingAddressInput{}
}

type CustomerInput struct {
	ID        string                `json:"id,omitempty"`
	Email     string                `json:"email,omitempty"`
	FirstName string                `json:"firstName,omitempty"`
	LastName  string                `json:"lastName,omitempty"`
	Phone     string                `json:"phone,omitempty"`
	Addresses []MailingAddressInput `json:"addresses,omitempty"`
	Tags      []string              `json:"tags,omitempty"`
}

const customerFields = `id email state firstName lastName phone`

const customerByEmailQuery = `
query CustomerByEmail($q: String!) {
  customers(first: 1, query: $q) {
    edges { node { ` + customerFields + ` } }
  }
}`

type customersPage struct {
	Customers struct {
		Edges []struct {
			Node Customer `json:"node"`
		} `json:"edges"`
	} `json:"customers"`
}

// FindCustomerByEmail returns nil, nil when no customer has exactly this email.
func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	vars := map[string]any{"q": fmt.Sprintf("email:%q", email)}
	data, err := AdminGraphQL[customersPage](ctx, c, customerByEmailQuery, vars)
	if err != nil {
		return nil, fmt.Errorf("customer lookup: %w", err)
	}
	for _, e := range data.Customers.Edges {
		// search is tokenised; only accept an exact address match
		if strings.EqualFold(strings.TrimSpace(e.Node.Email), email) {
			cust := e.Node
			return &cust, nil
		}
	}
	return nil, nil
}

const customerCreateMutation = `
mutation CustomerCreate($input: CustomerInput!) {
  customerCreate(input: $input) {
    customer { ` + customerFields + ` }
    userErrors { field message }
  }
}`

const customerUpdateMutation = `
mutation CustomerUpdate($input: CustomerInput!) {
  customerUpdate(input: $input) {
    customer { ` + customerFields + ` }
    userErrors { field message }
  }
}`

type customerPayload struct {
	Customer   *Customer   `json:"customer"`
	UserErrors []UserError `json:"userErrors"`
}

func (c *Client) CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error) {
	data, err := AdminGraphQL[struct {
		CustomerCreate customerPayload `json:"customerCreate"`
	}](ctx, c, customerCreateMutation, map[string]any{"input": in})
	if err != nil {
		return nil, fmt.Errorf("customerCreate: %w", err)
	}
	return checkCustomerPayload("customerCreate", data.CustomerCreate)
}

func (c *Client) UpdateCustomer(ctx context.Context, in CustomerInput) (*Customer, error) {
	if in.ID == "" {
		return nil, fmt.Errorf("customerUpdate: missing customer id")
	}
	data, err := AdminGraphQL[struct {
		CustomerUpdate customerPayload `json:"customerUpdate"`
	}](ctx, c, customerUpdateMutation, map[string]any{"input": in})
	if err != nil {
		return nil, fmt.Errorf("customerUpdate: %w", err)
	}
	return checkCustomerPayload("customerUpdate", data.CustomerUpdate)
}

func checkCustomerPayload(op string, p customerPayload) (*Customer, error) {
	if err := userErrs(p.UserErrors); err != nil {
		return nil, err
	}
	if p.Customer == nil || p.Customer.ID == "" {
		return nil, fmt.Errorf("%s: no customer returned", op)
	}
	return p.Customer, nil
}
