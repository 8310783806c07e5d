package handlers

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
)

const ServiceName = "retainer-intake"

// Health is the liveness probe. It touches no dependencies.
func Health(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	resp, err := jsonResp(200, map[string]any{
		"ok":      true,
		"service": ServiceName,
	})
	CORS{Debug: true}.Apply(&resp, header(req, "Origin"))
	return resp, err
}
