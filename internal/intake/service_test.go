package intake

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"retainer/internal/shopify"
)

type platformMock struct {
	mock.Mock
}

func (m *platformMock) FindCustomerByEmail(ctx context.Context, email string) (*shopify.Customer, error) {
	args := m.Called(ctx, email)
	c, _ := args.Get(0).(*shopify.Customer)
	return c, args.Error(1)
}

func (m *platformMock) CreateCustomer(ctx context.Context, in shopify.CustomerInput) (*shopify.Customer, error) {
	args := m.Called(ctx, in)
	c, _ := args.Get(0).(*shopify.Customer)
	return c, args.Error(1)
}

func (m *platformMock) UpdateCustomer(ctx context.Context, in shopify.CustomerInput) (*shopify.Customer, error) {
	args := m.Called(ctx, in)
	c, _ := args.Get(0).(*shopify.Customer)
	return c, args.Error(1)
}

func (m *platformMock) UploadFile(ctx context.Context, up shopify.Upload) (string, error) {
	args := m.Called(ctx, up)
	return args.String(0), args.Error(1)
}

func (m *platformMock) SetMetafields(ctx context.Context, fields []shopify.MetafieldInput) error {
	return m.Called(ctx, fields).Error(0)
}

func (m *platformMock) SendInvite(ctx context.Context, customerID, mode string) error {
	return m.Called(ctx, customerID, mode).Error(0)
}

func (m *platformMock) StorefrontCreateCustomer(ctx context.Context, in shopify.StorefrontCustomerInput) (*shopify.Customer, error) {
	args := m.Called(ctx, in)
	c, _ := args.Get(0).(*shopify.Customer)
	return c, args.Error(1)
}

var pngURL = "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("\x89PNG sig"))

func metafieldKeys(fields []shopify.MetafieldInput) []string {
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.Key)
	}
	return keys
}

func TestUpsertCreatesCustomerAndInvites(t *testing.T) {
	ctx := context.Background()
	p := &platformMock{}
	svc := NewService(p, Options{InviteMode: "graphql"})

	p.On("FindCustomerByEmail", ctx, "jane@example.com").Return(nil, nil)
	p.On("CreateCustomer", ctx, mock.MatchedBy(func(in shopify.CustomerInput) bool {
		return in.Email == "jane@example.com" && in.Phone == "+15551234567" && len(in.Addresses) == 1
	})).Return(&shopify.Customer{ID: "gid://shopify/Customer/7", State: shopify.StateDisabled}, nil)
	p.On("UploadFile", ctx, mock.MatchedBy(func(up shopify.Upload) bool {
		return up.MimeType == "image/png" && len(up.Filename) > len("signature-")
	})).Return("gid://shopify/MediaImage/1", nil)

	var written []shopify.MetafieldInput
	p.On("SetMetafields", ctx, mock.Anything).Run(func(args mock.Arguments) {
		written = args.Get(1).([]shopify.MetafieldInput)
	}).Return(nil)
	p.On("SendInvite", ctx, "gid://shopify/Customer/7", "graphql").Return(nil)

	req := decode(t, `{"email":"  Jane@Example.com ","phone":"555-123-4567","city":"Boston","signature":"`+pngURL+`"}`)
	res, err := svc.Upsert(ctx, req)
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.True(t, res.Invited)
	assert.Equal(t, "gid://shopify/Customer/7", res.CustomerID)
	assert.Equal(t, []string{"signature"}, res.Uploaded)
	assert.Contains(t, metafieldKeys(written), "signature")
	assert.Contains(t, metafieldKeys(written), "vehicles")
	p.AssertExpectations(t)
}

func TestUpsertInvitesOnlyDisabledCustomers(t *testing.T) {
	for _, state := range []string{shopify.StateEnabled, "INVITED", "DECLINED"} {
		t.Run(state, func(t *testing.T) {
			ctx := context.Background()
			p := &platformMock{}
			svc := NewService(p, Options{InviteMode: "graphql"})

			existing := &shopify.Customer{ID: "gid://shopify/Customer/8", State: state}
			p.On("FindCustomerByEmail", ctx, "a@b.com").Return(existing, nil)
			p.On("UpdateCustomer", ctx, mock.MatchedBy(func(in shopify.CustomerInput) bool {
				return in.ID == existing.ID && in.Phone == ""
			})).Return(&shopify.Customer{ID: existing.ID}, nil)
			p.On("SetMetafields", ctx, mock.Anything).Return(nil)

			res, err := svc.Upsert(ctx, decode(t, `{"email":"a@b.com","phone":"nope"}`))
			require.NoError(t, err)
			assert.False(t, res.Created)
			assert.False(t, res.Invited)
			p.AssertNotCalled(t, "SendInvite", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestUpsertSkipsNonPNGSignature(t *testing.T) {
	ctx := context.Background()
	p := &platformMock{}
	svc := NewService(p, Options{InviteMode: "off"})

	p.On("FindCustomerByEmail", ctx, "a@b.com").Return(&shopify.Customer{ID: "c1", State: shopify.StateDisabled}, nil)
	p.On("UpdateCustomer", ctx, mock.Anything).Return(&shopify.Customer{ID: "c1"}, nil)
	var written []shopify.MetafieldInput
	p.On("SetMetafields", ctx, mock.Anything).Run(func(args mock.Arguments) {
		written = args.Get(1).([]shopify.MetafieldInput)
	}).Return(nil)

	res, err := svc.Upsert(ctx, decode(t, `{"email":"a@b.com","signature":"data:image/jpeg;base64,AAAA"}`))
	require.NoError(t, err)
	assert.Empty(t, res.Uploaded)
	assert.Equal(t, []string{"signature"}, res.Skipped)
	assert.NotContains(t, metafieldKeys(written), "signature")
	p.AssertNotCalled(t, "UploadFile", mock.Anything, mock.Anything)
	p.AssertNotCalled(t, "SendInvite", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpsertUploadFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	p := &platformMock{}
	svc := NewService(p, Options{})

	p.On("FindCustomerByEmail", ctx, "a@b.com").Return(&shopify.Customer{ID: "c1", State: shopify.StateEnabled}, nil)
	p.On("UpdateCustomer", ctx, mock.Anything).Return(&shopify.Customer{ID: "c1"}, nil)
	p.On("UploadFile", ctx, mock.Anything).Return("", errors.New("staged upload: 500"))
	p.On("SetMetafields", ctx, mock.Anything).Return(nil)

	res, err := svc.Upsert(ctx, decode(t, `{"email":"a@b.com","license_image":"data:image/jpeg;base64,AAAA"}`))
	require.NoError(t, err)
	assert.Empty(t, res.Uploaded)
	assert.Equal(t, []string{"license_image"}, res.Skipped)
}

func TestUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := &platformMock{}
	svc := NewService(p, Options{})

	p.On("FindCustomerByEmail", ctx, "a@b.com").Return(&shopify.Customer{ID: "c1", State: shopify.StateEnabled}, nil)
	p.On("UpdateCustomer", ctx, mock.Anything).Return(&shopify.Customer{ID: "c1"}, nil)
	var calls [][]shopify.MetafieldInput
	p.On("SetMetafields", ctx, mock.Anything).Run(func(args mock.Arguments) {
		calls = append(calls, args.Get(1).([]shopify.MetafieldInput))
	}).Return(nil)

	body := `{"email":"a@b.com","dob":"1990-01-01","cars_count":2,"vehicles":[{"make":"Ford"}]}`
	_, err := svc.Upsert(ctx, decode(t, body))
	require.NoError(t, err)
	_, err = svc.Upsert(ctx, decode(t, body))
	require.NoError(t, err)

	require.Len(t, calls, 2)
	assert.Equal(t, calls[0], calls[1])
	p.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
}

func TestUpsertRejectsBadEmail(t *testing.T) {
	svc := NewService(&platformMock{}, Options{})
	_, err := svc.Upsert(context.Background(), decode(t, `{"email":"nope"}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "invalid email", verr.Msg)
}

func TestUpsertMetafieldFailure(t *testing.T) {
	ctx := context.Background()
	p := &platformMock{}
	svc := NewService(p, Options{InviteMode: "graphql"})

	p.On("FindCustomerByEmail", ctx, "a@b.com").Return(nil, nil)
	p.On("CreateCustomer", ctx, mock.Anything).Return(&shopify.Customer{ID: "c1", State: shopify.StateDisabled}, nil)
	p.On("SetMetafields", ctx, mock.Anything).Return(shopify.UserErrors{{Message: "Value is invalid"}})

	_, err := svc.Upsert(ctx, decode(t, `{"email":"a@b.com"}`))
	var uerrs shopify.UserErrors
	require.ErrorAs(t, err, &uerrs)
	p.AssertNotCalled(t, "SendInvite", mock.Anything, mock.Anything, mock.Anything)
}

func TestProfileUpdateRequiresCustomer(t *testing.T) {
	ctx := context.Background()
	p := &platformMock{}
	svc := NewService(p, Options{})
	p.On("FindCustomerByEmail", ctx, "a@b.com").Return(nil, nil)

	_, err := svc.ProfileUpdate(ctx, decode(t, `{"email":"a@b.com"}`))
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestProfileUpdateWritesOnlyPresentKeys(t *testing.T) {
	ctx := context.Background()
	p := &platformMock{}
	svc := NewService(p, Options{})

	p.On("FindCustomerByEmail", ctx, "a@b.com").Return(&shopify.Customer{ID: "c1"}, nil)
	var written []shopify.MetafieldInput
	p.On("SetMetafields", ctx, mock.Anything).Run(func(args mock.Arguments) {
		written = args.Get(1).([]shopify.MetafieldInput)
	}).Return(nil)

	res, err := svc.ProfileUpdate(ctx, decode(t, `{"email":"a@b.com","insurer":"Acme"}`))
	require.NoError(t, err)
	assert.Equal(t, "c1", res.CustomerID)
	assert.Equal(t, []string{"insurer"}, metafieldKeys(written))
	p.AssertNotCalled(t, "UpdateCustomer", mock.Anything, mock.Anything)
}

func TestCreateAccountValidation(t *testing.T) {
	svc := NewService(&platformMock{}, Options{})
	cases := map[string]AccountRequest{
		"email is required": {Password: "secret1"},
		"invalid email":     {Email: "x@y", Password: "secret1"},
		"password must be between 5 and 40 characters": {Email: "a@b.com", Password: "abc"},
		"invalid phone": {Email: "a@b.com", Password: "secret1", Phone: "call"},
	}
	for want, req := range cases {
		req := req
		_, err := svc.CreateAccount(context.Background(), &req)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, want)
		assert.Equal(t, want, verr.Msg)
	}
}

func TestCreateAccount(t *testing.T) {
	ctx := context.Background()
	p := &platformMock{}
	svc := NewService(p, Options{})
	p.On("StorefrontCreateCustomer", ctx, shopify.StorefrontCustomerInput{
		Email:            "a@b.com",
		Password:         "secret1",
		FirstName:        "Ann",
		AcceptsMarketing: true,
	}).Return(&shopify.Customer{ID: "gid://shopify/Customer/3"}, nil)

	cust, err := svc.CreateAccount(ctx, &AccountRequest{
		Email: "A@b.com", Password: "secret1", FirstName: "Ann",
		AcceptsMarketing: Flag{Value: true, Set: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/Customer/3", cust.ID)
}
