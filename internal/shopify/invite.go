package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const sendInviteMutation = `
mutation SendInvite($id: ID!) {
  customerSendAccountInviteEmail(customerId: $id) {
    customer { id }
    userErrors { field message }
  }
}`

type sendInviteData struct {
	CustomerSendAccountInviteEmail struct {
		UserErrors []UserError `json:"userErrors"`
	} `json:"customerSendAccountInviteEmail"`
}

// SendInvite emails the account-activation invite. mode is "rest" or "graphql".
func (c *Client) SendInvite(ctx context.Context, customerID, mode string) error {
	if mode == "rest" {
		return c.sendInviteREST(ctx, customerID)
	}
	data, err := AdminGraphQL[sendInviteData](ctx, c, sendInviteMutation, map[string]any{"id": CustomerGID(customerID)})
	if err != nil {
		return fmt.Errorf("customerSendAccountInviteEmail: %w", err)
	}
	return userErrs(data.CustomerSendAccountInviteEmail.UserErrors)
}

type inviteReq struct {
	CustomerInvite struct {
		Subject string `json:"subject,omitempty"`
	} `json:"customer_invite"`
}

func (c *Client) sendInviteREST(ctx context.Context, customerID string) error {
	url := c.adminURL(fmt.Sprintf("/customers/%s/send_invite.json", NumericID(customerID)))

	b, _ := json.Marshal(inviteReq{})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.AdminToken)

	res, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("send invite failed: http %d: %s", res.StatusCode, truncate(string(raw), 300))
	}
	return nil
}
