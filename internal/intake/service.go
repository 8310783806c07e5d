package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"retainer/internal/logging"
	"retainer/internal/shopify"
)

// Platform is the subset of the Shopify client the intake flows need.
type Platform interface {
	FindCustomerByEmail(ctx context.Context, email string) (*shopify.Customer, error)
	CreateCustomer(ctx context.Context, in shopify.CustomerInput) (*shopify.Customer, error)
	UpdateCustomer(ctx context.Context, in shopify.CustomerInput) (*shopify.Customer, error)
	UploadFile(ctx context.Context, up shopify.Upload) (string, error)
	SetMetafields(ctx context.Context, fields []shopify.MetafieldInput) error
	SendInvite(ctx context.Context, customerID, mode string) error
	StorefrontCreateCustomer(ctx context.Context, in shopify.StorefrontCustomerInput) (*shopify.Customer, error)
}

type Options struct {
	Namespace      string
	MappingVersion string
	InviteMode     string
}

type Service struct {
	platform Platform
	opts     Options
	mapping  Mapping
}

func NewService(p Platform, opts Options) *Service {
	if opts.Namespace == "" {
		opts.Namespace = "retainer"
	}
	return &Service{platform: p, opts: opts, mapping: MappingFor(opts.MappingVersion)}
}

var ErrCustomerNotFound = errors.New("customer not found")

// Result summarises one upsert or profile update.
type Result struct {
	CustomerID string   `json:"customer_id"`
	Created    bool     `json:"created"`
	Uploaded   []string `json:"uploaded"`
	Skipped    []string `json:"-"`
	Metafields int      `json:"-"`
	Invited    bool     `json:"-"`
}

// Upsert creates or updates the customer for req.Email, stores its uploads and
// writes the mapped metafields. Steps run in order; a failed upload is skipped,
// any other platform failure aborts with the error.
func (s *Service) Upsert(ctx context.Context, req *Request) (*Result, error) {
	email, err := requireEmail(req)
	if err != nil {
		return nil, err
	}

	existing, err := s.platform.FindCustomerByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup customer: %w", err)
	}

	in := customerInput(req)
	res := &Result{Uploaded: []string{}}
	var cust *shopify.Customer
	if existing == nil {
		in.Email = email
		in.Tags = []string{"retainer-intake"}
		cust, err = s.platform.CreateCustomer(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("create customer: %w", err)
		}
		res.Created = true
		logging.Info("customer created", "email", email, "customer_id", cust.ID)
	} else {
		in.ID = existing.ID
		cust, err = s.platform.UpdateCustomer(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("update customer: %w", err)
		}
		if cust.State == "" {
			cust.State = existing.State
		}
		logging.Info("customer updated", "email", email, "customer_id", cust.ID)
	}
	res.CustomerID = cust.ID

	if err := s.writeFields(ctx, email, req, res, false); err != nil {
		return res, err
	}

	if s.inviteEnabled() && cust.State == shopify.StateDisabled {
		if err := s.platform.SendInvite(ctx, cust.ID, s.opts.InviteMode); err != nil {
			logging.Warn("invite failed", "email", email, "customer_id", cust.ID, "err", err)
		} else {
			res.Invited = true
		}
	}
	return res, nil
}

// ProfileUpdate writes only the keys present in req onto an existing customer.
func (s *Service) ProfileUpdate(ctx context.Context, req *Request) (*Result, error) {
	email, err := requireEmail(req)
	if err != nil {
		return nil, err
	}

	existing, err := s.platform.FindCustomerByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup customer: %w", err)
	}
	if existing == nil {
		return nil, ErrCustomerNotFound
	}

	res := &Result{CustomerID: existing.ID, Uploaded: []string{}}
	in := customerInput(req)
	if in.FirstName != "" || in.LastName != "" || in.Phone != "" || len(in.Addresses) > 0 {
		in.ID = existing.ID
		if _, err := s.platform.UpdateCustomer(ctx, in); err != nil {
			return nil, fmt.Errorf("update customer: %w", err)
		}
	}

	if err := s.writeFields(ctx, email, req, res, true); err != nil {
		return res, err
	}
	logging.Info("profile updated", "email", email, "customer_id", existing.ID, "metafields", res.Metafields)
	return res, nil
}

func (s *Service) writeFields(ctx context.Context, email string, req *Request, res *Result, partial bool) error {
	files := s.uploadDocuments(ctx, email, req, res)
	fields := s.mapping.Build(res.CustomerID, s.opts.Namespace, &Source{Req: req, Files: files, Partial: partial})
	res.Metafields = len(fields)
	if len(fields) == 0 {
		return nil
	}
	if err := s.platform.SetMetafields(ctx, fields); err != nil {
		return fmt.Errorf("set metafields: %w", err)
	}
	return nil
}

func (s *Service) inviteEnabled() bool {
	switch strings.ToLower(s.opts.InviteMode) {
	case "graphql", "rest":
		return true
	}
	return false
}

type document struct {
	key   string
	value func(*Request) Text
	parse func(string) (*DataURL, error)
}

var documents = []document{
	{key: "signature", value: func(r *Request) Text { return r.Signature }, parse: ParseSignature},
	{key: "license_image", value: func(r *Request) Text { return r.LicenseImage }, parse: ParseDataURL},
	{key: "insurance_card", value: func(r *Request) Text { return r.InsuranceCard }, parse: ParseDataURL},
}

// uploadDocuments returns file ids by metafield key. Rejected payloads and
// failed uploads are logged and left out.
func (s *Service) uploadDocuments(ctx context.Context, email string, req *Request, res *Result) map[string]string {
	files := map[string]string{}
	for _, d := range documents {
		raw := d.value(req)
		if raw.Blank() {
			continue
		}
		du, err := d.parse(raw.String())
		if err != nil {
			logging.Warn("upload rejected", "email", email, "field", d.key, "err", err)
			res.Skipped = append(res.Skipped, d.key)
			continue
		}
		id, err := s.platform.UploadFile(ctx, shopify.Upload{
			Filename: fmt.Sprintf("%s-%s.%s", d.key, uuid.NewString(), du.Ext()),
			MimeType: du.MimeType,
			Data:     du.Data,
			Alt:      d.key + " for " + email,
		})
		if err != nil {
			logging.Error("upload failed", "email", email, "field", d.key, "err", err)
			res.Skipped = append(res.Skipped, d.key)
			continue
		}
		files[d.key] = id
		res.Uploaded = append(res.Uploaded, d.key)
	}
	return files
}

func requireEmail(req *Request) (string, error) {
	if req == nil {
		return "", &ValidationError{Msg: "email is required"}
	}
	email := NormalizeEmail(req.Email.String())
	if email == "" {
		return "", &ValidationError{Msg: "email is required"}
	}
	if !ValidEmail(email) {
		return "", &ValidationError{Msg: "invalid email"}
	}
	return email, nil
}

func customerInput(req *Request) shopify.CustomerInput {
	in := shopify.CustomerInput{
		FirstName: req.FirstName.String(),
		LastName:  req.LastName.String(),
	}
	if p := req.Phone.String(); p != "" && ValidPhone(p) {
		in.Phone = E164(p)
	}
	addr := shopify.MailingAddressInput{
		Address1: req.Address1.String(),
		Address2: req.Address2.String(),
		City:     req.City.String(),
		Province: req.Province.String(),
		Zip:      req.Zip.String(),
		Country:  req.Country.String(),
	}
	if !addr.IsZero() {
		in.Addresses = []shopify.MailingAddressInput{addr}
	}
	return in
}

// AccountRequest is the storefront sign-up body.
type AccountRequest struct {
	Email            Text   `json:"email" validate:"required"`
	Password         string `json:"password" validate:"required,min=5,max=40"`
	FirstName        Text   `json:"first_name"`
	LastName         Text   `json:"last_name"`
	Phone            Text   `json:"phone"`
	AcceptsMarketing Flag   `json:"accepts_marketing"`
}

// Validate reports the first problem in caller terms.
func (a *AccountRequest) Validate() error {
	if err := validate.Struct(a); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			switch verrs[0].Field() {
			case "Email":
				return &ValidationError{Msg: "email is required"}
			case "Password":
				return &ValidationError{Msg: "password must be between 5 and 40 characters"}
			}
		}
		return &ValidationError{Msg: err.Error()}
	}
	if !ValidEmail(NormalizeEmail(a.Email.String())) {
		return &ValidationError{Msg: "invalid email"}
	}
	if !a.Phone.Blank() && !ValidPhone(a.Phone.String()) {
		return &ValidationError{Msg: "invalid phone"}
	}
	return nil
}

// CreateAccount registers a storefront customer with a password.
func (s *Service) CreateAccount(ctx context.Context, req *AccountRequest) (*shopify.Customer, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	in := shopify.StorefrontCustomerInput{
		Email:            NormalizeEmail(req.Email.String()),
		Password:         req.Password,
		FirstName:        req.FirstName.String(),
		LastName:         req.LastName.String(),
		AcceptsMarketing: req.AcceptsMarketing.Value,
	}
	if !req.Phone.Blank() {
		in.Phone = E164(req.Phone.String())
	}
	cust, err := s.platform.StorefrontCreateCustomer(ctx, in)
	if err != nil {
		logging.Warn("storefront customer create failed", "email", in.Email, "err", err)
		return nil, err
	}
	logging.Info("storefront customer created", "email", in.Email, "customer_id", cust.ID)
	return cust, nil
}
