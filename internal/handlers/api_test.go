package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"retainer/internal/intake"
	"retainer/internal/records"
	"retainer/internal/shopify"
)

type intakeMock struct {
	mock.Mock
}

func (m *intakeMock) Upsert(ctx context.Context, req *intake.Request) (*intake.Result, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*intake.Result)
	return r, args.Error(1)
}

func (m *intakeMock) ProfileUpdate(ctx context.Context, req *intake.Request) (*intake.Result, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*intake.Result)
	return r, args.Error(1)
}

func (m *intakeMock) CreateAccount(ctx context.Context, req *intake.AccountRequest) (*shopify.Customer, error) {
	args := m.Called(ctx, req)
	c, _ := args.Get(0).(*shopify.Customer)
	return c, args.Error(1)
}

type recordsMock struct {
	mock.Mock
}

func (m *recordsMock) Get(ctx context.Context, email string) (*records.Record, error) {
	args := m.Called(ctx, email)
	r, _ := args.Get(0).(*records.Record)
	return r, args.Error(1)
}

func (m *recordsMock) Put(ctx context.Context, req *records.PutRequest, fallback string) (*records.Record, error) {
	args := m.Called(ctx, req, fallback)
	r, _ := args.Get(0).(*records.Record)
	return r, args.Error(1)
}

func request(method, path, body string) events.APIGatewayV2HTTPRequest {
	req := events.APIGatewayV2HTTPRequest{
		RawPath: path,
		Headers: map[string]string{"content-type": "application/json", "origin": "https://shop.example.com"},
		Body:    body,
	}
	req.RequestContext.HTTP.Method = method
	return req
}

func decodeJSON(t *testing.T, resp events.APIGatewayV2HTTPResponse) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &out))
	return out
}

func newAPI() (*API, *intakeMock, *recordsMock) {
	im, rm := &intakeMock{}, &recordsMock{}
	return &API{Intake: im, Records: rm, CORS: CORS{AllowedOrigins: []string{"https://shop.example.com"}}}, im, rm
}

func TestPreflight(t *testing.T) {
	api, _, _ := newAPI()
	resp, err := api.Handle(context.Background(), request("OPTIONS", RouteIntakeUpsert, ""))
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)
	assert.Equal(t, "https://shop.example.com", resp.Headers["access-control-allow-origin"])
	assert.Equal(t, "GET, POST, PUT, OPTIONS", resp.Headers["access-control-allow-methods"])
	assert.Equal(t, "Content-Type, Authorization, X-Requested-With", resp.Headers["access-control-allow-headers"])
	assert.Equal(t, "Origin", resp.Headers["vary"])
}

func TestIntakeUpsertOK(t *testing.T) {
	api, im, _ := newAPI()
	im.On("Upsert", mock.Anything, mock.MatchedBy(func(r *intake.Request) bool {
		return r.Email.String() == "a@b.com"
	})).Return(&intake.Result{CustomerID: "gid://shopify/Customer/1", Created: true, Uploaded: []string{"signature"}}, nil)

	resp, err := api.Handle(context.Background(), request("POST", RouteIntakeUpsert, `{"email":"a@b.com"}`))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	out := decodeJSON(t, resp)
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, "gid://shopify/Customer/1", out["customer_id"])
	assert.Equal(t, true, out["created"])
	assert.Equal(t, []any{"signature"}, out["uploaded"])
}

func TestIntakeUpsertValidationIs400(t *testing.T) {
	api, im, _ := newAPI()
	im.On("Upsert", mock.Anything, mock.Anything).Return(nil, &intake.ValidationError{Msg: "invalid email"})

	resp, _ := api.Handle(context.Background(), request("POST", RouteIntakeUpsert, `{"email":"nope"}`))
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, map[string]any{"ok": false, "error": "invalid email"}, decodeJSON(t, resp))

	resp, _ = api.Handle(context.Background(), request("POST", RouteIntakeUpsert, ""))
	assert.Equal(t, 400, resp.StatusCode)
}

func TestPlatformErrorIs200(t *testing.T) {
	api, im, _ := newAPI()
	im.On("Upsert", mock.Anything, mock.Anything).Return(nil, shopify.UserErrors{{Code: "THROTTLED", Message: "slow down"}})

	resp, _ := api.Handle(context.Background(), request("POST", RouteIntakeUpsert, `{"email":"a@b.com"}`))
	assert.Equal(t, 200, resp.StatusCode)
	out := decodeJSON(t, resp)
	assert.Equal(t, false, out["ok"])
	assert.Contains(t, out["error"], "try again")
}

func TestProfileUpdateNotFound(t *testing.T) {
	api, im, _ := newAPI()
	im.On("ProfileUpdate", mock.Anything, mock.Anything).Return(nil, intake.ErrCustomerNotFound)

	resp, _ := api.Handle(context.Background(), request("POST", RouteProfileUpdate, `{"email":"a@b.com"}`))
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, map[string]any{"ok": false, "error": "customer not found"}, decodeJSON(t, resp))
}

func TestCustomerCreate(t *testing.T) {
	api, im, _ := newAPI()
	im.On("CreateAccount", mock.Anything, mock.MatchedBy(func(r *intake.AccountRequest) bool {
		return r.Password == "secret1"
	})).Return(&shopify.Customer{ID: "gid://shopify/Customer/2"}, nil).Once()

	resp, _ := api.Handle(context.Background(), request("POST", RouteCustomerCreate, `{"email":"a@b.com","password":"secret1"}`))
	assert.Equal(t, map[string]any{"ok": true, "customer_id": "gid://shopify/Customer/2"}, decodeJSON(t, resp))

	im.On("CreateAccount", mock.Anything, mock.Anything).
		Return(nil, shopify.UserErrors{{Code: "TAKEN", Message: "Email has already been taken"}}).Once()
	resp, _ = api.Handle(context.Background(), request("POST", RouteCustomerCreate, `{"email":"a@b.com","password":"secret1"}`))
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "An account with this email already exists. Please log in instead.", decodeJSON(t, resp)["error"])
}

func TestRecordRoutes(t *testing.T) {
	api, _, rm := newAPI()
	ctx := context.Background()

	rm.On("Get", mock.Anything, "a@b.com").Return(&records.Record{Email: "a@b.com", Insurer: "Acme"}, nil)
	req := request("GET", RouteRecord, "")
	req.QueryStringParameters = map[string]string{"email": "a@b.com"}
	resp, _ := api.Handle(ctx, req)
	out := decodeJSON(t, resp)
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, "Acme", out["record"].(map[string]any)["insurer"])

	rm.On("Get", mock.Anything, "x@b.com").Return(nil, errors.New("connection refused"))
	req.QueryStringParameters = nil
	req.RawQueryString = "email=x%40b.com"
	resp, _ = api.Handle(ctx, req)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, false, decodeJSON(t, resp)["ok"])

	rm.On("Put", mock.Anything, mock.Anything, "").Return(&records.Record{Email: "a@b.com"}, nil)
	resp, _ = api.Handle(ctx, request("PUT", RouteRecord, `{"email":"a@b.com"}`))
	assert.Equal(t, true, decodeJSON(t, resp)["ok"])
}

func TestRecordsNotConfigured(t *testing.T) {
	api := &API{Intake: &intakeMock{}}
	req := request("GET", RouteRecord, "")
	resp, _ := api.Handle(context.Background(), req)
	assert.Equal(t, map[string]any{"ok": false, "error": "record storage is not configured"}, decodeJSON(t, resp))
}

func TestRoutingMisses(t *testing.T) {
	api, _, _ := newAPI()
	resp, _ := api.Handle(context.Background(), request("GET", RouteIntakeUpsert, ""))
	assert.Equal(t, 405, resp.StatusCode)
	resp, _ = api.Handle(context.Background(), request("POST", "/api/retainer/nope", "{}"))
	assert.Equal(t, 404, resp.StatusCode)
}

func TestBase64AndFormBodies(t *testing.T) {
	api, im, _ := newAPI()
	im.On("Upsert", mock.Anything, mock.MatchedBy(func(r *intake.Request) bool {
		return r.Email.String() == "a@b.com" && r.IsInsured.Value
	})).Return(&intake.Result{CustomerID: "c", Uploaded: []string{}}, nil)

	req := request("POST", RouteIntakeUpsert, base64.StdEncoding.EncodeToString([]byte("email=a%40b.com&is_insured=on")))
	req.IsBase64Encoded = true
	req.Headers["Content-Type"] = "application/x-www-form-urlencoded"
	delete(req.Headers, "content-type")

	resp, _ := api.Handle(context.Background(), req)
	assert.Equal(t, true, decodeJSON(t, resp)["ok"])
}

func TestCORSModes(t *testing.T) {
	strict := CORS{AllowedOrigins: []string{"https://a.com"}}
	assert.Equal(t, "https://a.com", strict.allowOrigin("https://a.com"))
	assert.Equal(t, "", strict.allowOrigin("https://evil.com"))
	assert.Equal(t, "", strict.allowOrigin(""))
	assert.Equal(t, "https://a.com", strict.allowOrigin("https://a.com/"))
	assert.Equal(t, "https://a.com", strict.allowOrigin("HTTPS://A.COM"))

	listedWithSlash := CORS{AllowedOrigins: []string{" https://Shop.Example.com/ "}}
	assert.Equal(t, "https://shop.example.com", listedWithSlash.allowOrigin("https://shop.example.com"))

	wildcard := CORS{AllowedOrigins: []string{"*"}}
	assert.Equal(t, "https://any.com", wildcard.allowOrigin("https://any.com"))

	debug := CORS{Debug: true}
	assert.Equal(t, "https://evil.com", debug.allowOrigin("https://evil.com"))
	assert.Equal(t, "*", debug.allowOrigin(""))

	resp := events.APIGatewayV2HTTPResponse{}
	strict.Apply(&resp, "https://evil.com")
	_, ok := resp.Headers["access-control-allow-origin"]
	assert.False(t, ok)
	assert.Equal(t, "GET, POST, PUT, OPTIONS", resp.Headers["access-control-allow-methods"])
}

func TestHealth(t *testing.T) {
	resp, err := Health(context.Background(), request("GET", "/health", ""))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, map[string]any{"ok": true, "service": "retainer-intake"}, decodeJSON(t, resp))
	assert.Equal(t, "https://shop.example.com", resp.Headers["access-control-allow-origin"])
}
