package records

import (
	"context"
	"errors"
	"time"

	"retainer/internal/intake"
)

var ErrNotFound = errors.New("record not found")

// Record is the intake form as kept by the alternate backend, keyed by email.
type Record struct {
	Email     string `json:"email" dynamodbav:"email"`
	FirstName string `json:"first_name,omitempty" dynamodbav:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty" dynamodbav:"last_name,omitempty"`
	DOB       string `json:"dob,omitempty" dynamodbav:"dob,omitempty"`
	Phone     string `json:"phone,omitempty" dynamodbav:"phone,omitempty"`

	Address1 string `json:"address1,omitempty" dynamodbav:"address1,omitempty"`
	Address2 string `json:"address2,omitempty" dynamodbav:"address2,omitempty"`
	City     string `json:"city,omitempty" dynamodbav:"city,omitempty"`
	Province string `json:"province,omitempty" dynamodbav:"province,omitempty"`
	Zip      string `json:"zip,omitempty" dynamodbav:"zip,omitempty"`
	Country  string `json:"country,omitempty" dynamodbav:"country,omitempty"`

	Insurer        string `json:"insurer,omitempty" dynamodbav:"insurer,omitempty"`
	PolicyNumber   string `json:"policy_number,omitempty" dynamodbav:"policy_number,omitempty"`
	IsInsured      *bool  `json:"is_insured,omitempty" dynamodbav:"is_insured,omitempty"`
	HasPriorClaims *bool  `json:"has_prior_claims,omitempty" dynamodbav:"has_prior_claims,omitempty"`
	DriversLicense string `json:"drivers_license,omitempty" dynamodbav:"drivers_license,omitempty"`

	Vehicles  []intake.Vehicle         `json:"vehicles" dynamodbav:"vehicles"`
	Household []intake.HouseholdMember `json:"household" dynamodbav:"household"`

	RetainerPlan string `json:"retainer_plan,omitempty" dynamodbav:"retainer_plan,omitempty"`
	RetainerTerm string `json:"retainer_term,omitempty" dynamodbav:"retainer_term,omitempty"`
	SignatureURL string `json:"signature_url,omitempty" dynamodbav:"signature_url,omitempty"`

	UpdatedAt time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// Store persists records. Put is a last-write-wins upsert on email.
type Store interface {
	Get(ctx context.Context, email string) (*Record, error)
	Put(ctx context.Context, rec *Record) error
	ListUpdatedSince(ctx context.Context, since time.Time) ([]Record, error)
}

// PutRequest is the PUT body. It decodes as leniently as the intake form.
type PutRequest struct {
	Email     intake.Text `json:"email"`
	FirstName intake.Text `json:"first_name"`
	LastName  intake.Text `json:"last_name"`
	DOB       intake.Text `json:"dob"`
	Phone     intake.Text `json:"phone"`

	Address1 intake.Text `json:"address1"`
	Address2 intake.Text `json:"address2"`
	City     intake.Text `json:"city"`
	Province intake.Text `json:"province"`
	Zip      intake.Text `json:"zip"`
	Country  intake.Text `json:"country"`

	Insurer        intake.Text `json:"insurer"`
	PolicyNumber   intake.Text `json:"policy_number"`
	IsInsured      intake.Flag `json:"is_insured"`
	HasPriorClaims intake.Flag `json:"has_prior_claims"`
	DriversLicense intake.Text `json:"drivers_license"`

	Vehicles  intake.List[intake.Vehicle]         `json:"vehicles"`
	Household intake.List[intake.HouseholdMember] `json:"household"`

	RetainerPlan intake.Text `json:"retainer_plan"`
	RetainerTerm intake.Text `json:"retainer_term"`
	Signature    intake.Text `json:"signature"`
}

func (r *PutRequest) record(email string) *Record {
	rec := &Record{
		Email:          email,
		FirstName:      r.FirstName.String(),
		LastName:       r.LastName.String(),
		Phone:          r.Phone.String(),
		Address1:       r.Address1.String(),
		Address2:       r.Address2.String(),
		City:           r.City.String(),
		Province:       r.Province.String(),
		Zip:            r.Zip.String(),
		Country:        r.Country.String(),
		Insurer:        r.Insurer.String(),
		PolicyNumber:   r.PolicyNumber.String(),
		DriversLicense: r.DriversLicense.String(),
		Vehicles:       r.Vehicles.Items,
		Household:      r.Household.Items,
		RetainerPlan:   r.RetainerPlan.String(),
		RetainerTerm:   r.RetainerTerm.String(),
	}
	if dob := r.DOB.String(); intake.ValidDate(dob) {
		rec.DOB = dob
	}
	if r.IsInsured.Set {
		rec.IsInsured = &r.IsInsured.Value
	}
	if r.HasPriorClaims.Set {
		rec.HasPriorClaims = &r.HasPriorClaims.Value
	}
	if rec.Vehicles == nil {
		rec.Vehicles = []intake.Vehicle{}
	}
	if rec.Household == nil {
		rec.Household = []intake.HouseholdMember{}
	}
	return rec
}
