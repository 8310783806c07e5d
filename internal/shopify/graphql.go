package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type GraphQLError struct {
	Message    string `json:"message"`
	Path       []any  `json:"path,omitempty"`
	Extensions struct {
		Code string `json:"code,omitempty"`
	} `json:"extensions,omitempty"`
}

type GraphQLResponse[T any] struct {
	Data   T              `json:"data"`
	Errors []GraphQLError `json:"errors"`
}

// AdminGraphQL posts to the Admin API with the admin token.
func AdminGraphQL[T any](ctx context.Context, c *Client, query string, variables any) (T, error) {
	return postGraphQL[T](ctx, c, c.adminURL("/graphql.json"), "X-Shopify-Access-Token", c.AdminToken, query, variables)
}

// StorefrontGraphQL posts to the Storefront API with the storefront token.
func StorefrontGraphQL[T any](ctx context.Context, c *Client, query string, variables any) (T, error) {
	return postGraphQL[T](ctx, c, c.storefrontURL(), "X-Shopify-Storefront-Access-Token", c.StorefrontToken, query, variables)
}

func postGraphQL[T any](ctx context.Context, c *Client, endpoint, tokenHeader, token, query string, variables any) (T, error) {
	var zero T

	b, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return zero, fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return zero, err
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set(tokenHeader, token)

	res, err := c.httpClient().Do(req)
	if err != nil {
		return zero, fmt.Errorf("shopify graphql: %w", err)
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return zero, fmt.Errorf("shopify graphql: http %d: %s", res.StatusCode, truncate(string(raw), 300))
	}

	var out GraphQLResponse[T]
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("decode graphql response: %w", err)
	}
	if len(out.Errors) > 0 {
		return out.Data, GraphQLErrors(out.Errors)
	}
	return out.Data, nil
}
