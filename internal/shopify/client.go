package shopify

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client talks to one shop's Admin and Storefront APIs.
type Client struct {
	Shop            string
	APIVersion      string
	AdminToken      string
	StorefrontToken string

	// BaseURL overrides https://<shop>; tests point it at an httptest server.
	BaseURL string
	HTTP    *http.Client
}

func NewClient(shop, apiVersion, adminToken, storefrontToken string) *Client {
	return &Client{
		Shop:            shop,
		APIVersion:      apiVersion,
		AdminToken:      adminToken,
		StorefrontToken: storefrontToken,
		HTTP:            &http.Client{Timeout: 20 * time.Second},
	}
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return "https://" + c.Shop
}

func (c *Client) adminURL(path string) string {
	return fmt.Sprintf("%s/admin/api/%s%s", c.base(), c.APIVersion, path)
}

func (c *Client) storefrontURL() string {
	return fmt.Sprintf("%s/api/%s/graphql.json", c.base(), c.APIVersion)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// CustomerGID turns a numeric REST id into an Admin GraphQL id. Values that are
// already gids pass through.
func CustomerGID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, "gid://") {
		return id
	}
	return "gid://shopify/Customer/" + id
}

// OrderGID is CustomerGID for orders.
func OrderGID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, "gid://") {
		return id
	}
	return "gid://shopify/Order/" + id
}

// NumericID returns the last path segment of a gid.
func NumericID(gid string) string {
	if i := strings.LastIndex(gid, "/"); i >= 0 {
		return gid[i+1:]
	}
	return gid
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
