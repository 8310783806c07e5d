package handlers

import (
	"context"
	"errors"

	"github.com/aws/aws-lambda-go/events"

	"retainer/internal/intake"
	"retainer/internal/logging"
	"retainer/internal/records"
	"retainer/internal/shopify"
)

const (
	RouteIntakeUpsert   = "/api/retainer/intake-upsert"
	RouteProfileUpdate  = "/api/retainer/profile-update"
	RouteCustomerCreate = "/api/retainer/customer-create"
	RouteRecord         = "/api/retainer/record"
	RouteOrderWebhook   = "/api/retainer/order-webhook"
)

type IntakeService interface {
	Upsert(ctx context.Context, req *intake.Request) (*intake.Result, error)
	ProfileUpdate(ctx context.Context, req *intake.Request) (*intake.Result, error)
	CreateAccount(ctx context.Context, req *intake.AccountRequest) (*shopify.Customer, error)
}

type RecordService interface {
	Get(ctx context.Context, email string) (*records.Record, error)
	Put(ctx context.Context, req *records.PutRequest, fallbackEmail string) (*records.Record, error)
}

// API serves the storefront routes. Records is nil when no record backend
// is configured.
type API struct {
	Intake  IntakeService
	Records RecordService
	CORS    CORS
}

func (a *API) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	origin := header(req, "Origin")
	if method(req) == "OPTIONS" {
		resp := preflight()
		a.CORS.Apply(&resp, origin)
		return resp, nil
	}

	resp, err := a.route(ctx, req)
	if err != nil {
		logging.Error("unhandled error", "path", path(req), "err", err)
		resp, _ = errResp(200, err.Error())
	}
	a.CORS.Apply(&resp, origin)
	return resp, nil
}

func (a *API) route(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	m := method(req)
	switch path(req) {
	case RouteIntakeUpsert:
		if m != "POST" {
			return errResp(405, "method not allowed")
		}
		return a.intakeUpsert(ctx, req)
	case RouteProfileUpdate:
		if m != "POST" {
			return errResp(405, "method not allowed")
		}
		return a.profileUpdate(ctx, req)
	case RouteCustomerCreate:
		if m != "POST" {
			return errResp(405, "method not allowed")
		}
		return a.customerCreate(ctx, req)
	case RouteRecord:
		switch m {
		case "GET":
			return a.getRecord(ctx, req)
		case "PUT", "POST":
			return a.putRecord(ctx, req)
		}
		return errResp(405, "method not allowed")
	}
	return errResp(404, "not found")
}

func decodeBody(req events.APIGatewayV2HTTPRequest, v any) error {
	body, err := rawBody(req)
	if err != nil {
		return &intake.ValidationError{Msg: "invalid body encoding"}
	}
	if err := intake.DecodeRequest(body, header(req, "Content-Type"), v); err != nil {
		return &intake.ValidationError{Msg: err.Error()}
	}
	return nil
}

// failure maps a service error onto the response contract: caller mistakes
// are 400, everything else is 200 with ok:false.
func failure(op string, err error) (events.APIGatewayV2HTTPResponse, error) {
	var verr *intake.ValidationError
	if errors.As(err, &verr) {
		return errResp(400, verr.Msg)
	}
	logging.Warn(op+" failed", "err", err)
	return errResp(200, shopify.Friendly(err))
}

func (a *API) intakeUpsert(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	var in intake.Request
	if err := decodeBody(req, &in); err != nil {
		return failure("intake upsert", err)
	}
	res, err := a.Intake.Upsert(ctx, &in)
	if err != nil {
		return failure("intake upsert", err)
	}
	return jsonResp(200, map[string]any{
		"ok":          true,
		"customer_id": res.CustomerID,
		"created":     res.Created,
		"uploaded":    res.Uploaded,
	})
}

func (a *API) profileUpdate(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	var in intake.Request
	if err := decodeBody(req, &in); err != nil {
		return failure("profile update", err)
	}
	res, err := a.Intake.ProfileUpdate(ctx, &in)
	if errors.Is(err, intake.ErrCustomerNotFound) {
		return errResp(200, "customer not found")
	}
	if err != nil {
		return failure("profile update", err)
	}
	return jsonResp(200, map[string]any{
		"ok":          true,
		"customer_id": res.CustomerID,
		"uploaded":    res.Uploaded,
	})
}

func (a *API) customerCreate(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	var in intake.AccountRequest
	if err := decodeBody(req, &in); err != nil {
		return failure("customer create", err)
	}
	cust, err := a.Intake.CreateAccount(ctx, &in)
	if err != nil {
		return failure("customer create", err)
	}
	return jsonResp(200, map[string]any{
		"ok":          true,
		"customer_id": cust.ID,
	})
}

func (a *API) getRecord(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if a.Records == nil {
		return errResp(200, "record storage is not configured")
	}
	rec, err := a.Records.Get(ctx, queryParam(req, "email"))
	if errors.Is(err, records.ErrNotFound) {
		return errResp(200, "record not found")
	}
	if err != nil {
		return failure("record get", err)
	}
	return jsonResp(200, map[string]any{"ok": true, "record": rec})
}

func (a *API) putRecord(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if a.Records == nil {
		return errResp(200, "record storage is not configured")
	}
	var in records.PutRequest
	if err := decodeBody(req, &in); err != nil {
		return failure("record put", err)
	}
	rec, err := a.Records.Put(ctx, &in, queryParam(req, "email"))
	if err != nil {
		return failure("record put", err)
	}
	return jsonResp(200, map[string]any{"ok": true, "record": rec})
}
