package handlers

import (
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

const (
	allowMethods = "GET, POST, PUT, OPTIONS"
	allowHeaders = "Content-Type, Authorization, X-Requested-With"
)

// CORS decides the Access-Control-Allow-Origin for a request origin.
// Strict mode echoes listed origins only; debug mode echoes anything.
type CORS struct {
	AllowedOrigins []string
	Debug          bool
}

func (c CORS) allowOrigin(origin string) string {
	origin = normalizeOrigin(origin)
	if c.Debug {
		if origin == "" {
			return "*"
		}
		return origin
	}
	if origin == "" {
		return ""
	}
	for _, o := range c.AllowedOrigins {
		if o = normalizeOrigin(o); o == "*" || o == origin {
			return origin
		}
	}
	return ""
}

// normalizeOrigin lower-cases scheme and host and drops a trailing slash.
func normalizeOrigin(origin string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
}

// Apply adds the CORS headers to resp.
func (c CORS) Apply(resp *events.APIGatewayV2HTTPResponse, origin string) {
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers["access-control-allow-methods"] = allowMethods
	resp.Headers["access-control-allow-headers"] = allowHeaders
	resp.Headers["vary"] = "Origin"
	if ao := c.allowOrigin(origin); ao != "" {
		resp.Headers["access-control-allow-origin"] = ao
	}
}

func preflight() events.APIGatewayV2HTTPResponse {
	return events.APIGatewayV2HTTPResponse{StatusCode: 204, Headers: map[string]string{}}
}
