package intake

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"
)

type Vehicle struct {
	Year  Text `json:"year"`
	Make  Text `json:"make"`
	Model Text `json:"model"`
	VIN   Text `json:"vin"`
}

func (v Vehicle) IsZero() bool {
	return v.Year.Blank() && v.Make.Blank() && v.Model.Blank() && v.VIN.Blank()
}

type HouseholdMember struct {
	Name         Text `json:"name"`
	Relationship Text `json:"relationship"`
	DOB          Text `json:"dob"`
}

func (h HouseholdMember) IsZero() bool {
	return h.Name.Blank() && h.Relationship.Blank() && h.DOB.Blank()
}

// Request is the intake form as posted by the storefront script. Every field
// except email is optional.
type Request struct {
	Email     Text `json:"email"`
	FirstName Text `json:"first_name"`
	LastName  Text `json:"last_name"`
	Phone     Text `json:"phone"`
	DOB       Text `json:"dob"`

	Address1 Text `json:"address1"`
	Address2 Text `json:"address2"`
	City     Text `json:"city"`
	Province Text `json:"province"`
	Zip      Text `json:"zip"`
	Country  Text `json:"country"`

	Insurer        Text `json:"insurer"`
	PolicyNumber   Text `json:"policy_number"`
	IsInsured      Flag `json:"is_insured"`
	HasPriorClaims Flag `json:"has_prior_claims"`
	BILimits       Text `json:"bi_limits"`
	DriversLicense Text `json:"drivers_license"`
	LicenseState   Text `json:"license_state"`

	CarsCount      Count                 `json:"cars_count"`
	HouseholdCount Count                 `json:"household_count"`
	Vehicles       List[Vehicle]         `json:"vehicles"`
	Household      List[HouseholdMember] `json:"household"`

	RetainerPlan  Text `json:"retainer_plan"`
	RetainerTerm  Text `json:"retainer_term"`
	TermsAccepted Flag `json:"terms_accepted"`
	SignedOn      Text `json:"signed_on"`

	Signature     Text `json:"signature"`
	LicenseImage  Text `json:"license_image"`
	InsuranceCard Text `json:"insurance_card"`
}

var ErrEmptyBody = errors.New("request body is empty")

// DecodeRequest parses a JSON or urlencoded form body into v.
func DecodeRequest(body []byte, contentType string, v any) error {
	if len(strings.TrimSpace(string(body))) == 0 {
		return ErrEmptyBody
	}

	mt, _, _ := mime.ParseMediaType(contentType)
	if mt == "application/x-www-form-urlencoded" {
		vals, err := url.ParseQuery(string(body))
		if err != nil {
			return fmt.Errorf("invalid form body: %w", err)
		}
		flat := make(map[string]string, len(vals))
		for k := range vals {
			flat[k] = vals.Get(k)
		}
		b, _ := json.Marshal(flat)
		body = b
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
