package intake

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"retainer/internal/shopify"
)

// Source is what a field extractor reads: the decoded form plus the file
// references produced by this request's uploads.
type Source struct {
	Req   *Request
	Files map[string]string

	// Partial marks a profile update: absent lists are left alone instead of
	// being written as empty.
	Partial bool
}

// FieldSpec maps one metafield key to its type and extractor. The extractor
// returns ok=false to omit the key.
type FieldSpec struct {
	Key   string
	Type  string
	Value func(src *Source) (string, bool)
}

type Mapping struct {
	Version string
	Fields  []FieldSpec
}

const (
	MappingV1 = "v1"
	MappingV2 = "v2"
)

// MappingFor returns the named field-mapping version. Unknown names get v2.
func MappingFor(version string) Mapping {
	if strings.EqualFold(strings.TrimSpace(version), MappingV1) {
		return Mapping{Version: MappingV1, Fields: v1Fields()}
	}
	return Mapping{Version: MappingV2, Fields: v2Fields()}
}

// Build renders the metafield writes for ownerID, skipping blank and invalid values.
func (m Mapping) Build(ownerID, namespace string, src *Source) []shopify.MetafieldInput {
	out := make([]shopify.MetafieldInput, 0, len(m.Fields))
	for _, f := range m.Fields {
		v, ok := f.Value(src)
		if !ok {
			continue
		}
		out = append(out, shopify.MetafieldInput{
			OwnerID:   ownerID,
			Namespace: namespace,
			Key:       f.Key,
			Type:      f.Type,
			Value:     v,
		})
	}
	return out
}

func commonHead() []FieldSpec {
	return []FieldSpec{
		{Key: "dob", Type: shopify.TypeDate, Value: date(func(r *Request) Text { return r.DOB })},
		{Key: "phone", Type: shopify.TypeText, Value: phone},
		{Key: "insurer", Type: shopify.TypeText, Value: text(func(r *Request) Text { return r.Insurer })},
		{Key: "policy_number", Type: shopify.TypeText, Value: text(func(r *Request) Text { return r.PolicyNumber })},
		{Key: "is_insured", Type: shopify.TypeBoolean, Value: flag(func(r *Request) Flag { return r.IsInsured })},
		{Key: "has_prior_claims", Type: shopify.TypeBoolean, Value: flag(func(r *Request) Flag { return r.HasPriorClaims })},
	}
}

func commonTail() []FieldSpec {
	return []FieldSpec{
		{Key: "drivers_license", Type: shopify.TypeText, Value: text(func(r *Request) Text { return r.DriversLicense })},
		{Key: "license_state", Type: shopify.TypeText, Value: text(func(r *Request) Text { return r.LicenseState })},
		{Key: "cars_count", Type: shopify.TypeInteger, Value: count(func(r *Request) Count { return r.CarsCount })},
		{Key: "household_count", Type: shopify.TypeInteger, Value: count(func(r *Request) Count { return r.HouseholdCount })},
		{Key: "vehicles", Type: shopify.TypeJSON, Value: vehiclesJSON},
		{Key: "household", Type: shopify.TypeJSON, Value: householdJSON},
		{Key: "retainer_plan", Type: shopify.TypeText, Value: text(func(r *Request) Text { return r.RetainerPlan })},
		{Key: "retainer_term", Type: shopify.TypeText, Value: text(func(r *Request) Text { return r.RetainerTerm })},
		{Key: "terms_accepted", Type: shopify.TypeBoolean, Value: flag(func(r *Request) Flag { return r.TermsAccepted })},
		{Key: "signed_on", Type: shopify.TypeDate, Value: date(func(r *Request) Text { return r.SignedOn })},
		{Key: "signature", Type: shopify.TypeFileRef, Value: file("signature")},
		{Key: "license_image", Type: shopify.TypeFileRef, Value: file("license_image")},
		{Key: "insurance_card", Type: shopify.TypeFileRef, Value: file("insurance_card")},
	}
}

// v1 stores lists as JSON only and still carries bodily-injury limits.
func v1Fields() []FieldSpec {
	fields := commonHead()
	fields = append(fields, FieldSpec{Key: "bi_limits", Type: shopify.TypeText, Value: text(func(r *Request) Text { return r.BILimits })})
	return append(fields, commonTail()...)
}

// v2 drops bi_limits and adds readable copies of the lists for the admin.
func v2Fields() []FieldSpec {
	fields := append(commonHead(), commonTail()...)
	return append(fields,
		FieldSpec{Key: "vehicles_text", Type: shopify.TypeMultiline, Value: vehiclesText},
		FieldSpec{Key: "household_text", Type: shopify.TypeMultiline, Value: householdText},
		FieldSpec{Key: "vehicle_vins", Type: shopify.TypeTextList, Value: vehicleVINs},
	)
}

func text(get func(*Request) Text) func(*Source) (string, bool) {
	return func(src *Source) (string, bool) {
		v := strings.TrimSpace(get(src.Req).String())
		return v, v != ""
	}
}

func date(get func(*Request) Text) func(*Source) (string, bool) {
	return func(src *Source) (string, bool) {
		v := strings.TrimSpace(get(src.Req).String())
		return v, ValidDate(v)
	}
}

func phone(src *Source) (string, bool) {
	v := strings.TrimSpace(src.Req.Phone.String())
	return v, ValidPhone(v)
}

func flag(get func(*Request) Flag) func(*Source) (string, bool) {
	return func(src *Source) (string, bool) {
		f := get(src.Req)
		return strconv.FormatBool(f.Value), f.Set
	}
}

func count(get func(*Request) Count) func(*Source) (string, bool) {
	return func(src *Source) (string, bool) {
		n, ok := get(src.Req).Int()
		return strconv.FormatInt(n, 10), ok
	}
}

func file(key string) func(*Source) (string, bool) {
	return func(src *Source) (string, bool) {
		id := src.Files[key]
		return id, id != ""
	}
}

func listJSON[T any](l List[T], partial bool) (string, bool) {
	if !l.Present && partial {
		return "", false
	}
	b, err := json.Marshal(l)
	if err != nil {
		return "", false
	}
	return string(b), true
}

func vehiclesJSON(src *Source) (string, bool) {
	return listJSON(src.Req.Vehicles, src.Partial)
}

func householdJSON(src *Source) (string, bool) {
	return listJSON(src.Req.Household, src.Partial)
}

// VehicleLine renders "2019 Honda Civic (VIN 1HG...)".
func VehicleLine(v Vehicle) string {
	parts := make([]string, 0, 3)
	for _, p := range []Text{v.Year, v.Make, v.Model} {
		if !p.Blank() {
			parts = append(parts, p.String())
		}
	}
	line := strings.Join(parts, " ")
	if !v.VIN.Blank() {
		if line != "" {
			line += " "
		}
		line += fmt.Sprintf("(VIN %s)", v.VIN)
	}
	return line
}

// MemberLine renders "Jane Doe, spouse, born 1990-01-01".
func MemberLine(m HouseholdMember) string {
	parts := make([]string, 0, 3)
	if !m.Name.Blank() {
		parts = append(parts, m.Name.String())
	}
	if !m.Relationship.Blank() {
		parts = append(parts, m.Relationship.String())
	}
	if !m.DOB.Blank() {
		parts = append(parts, "born "+m.DOB.String())
	}
	return strings.Join(parts, ", ")
}

func vehiclesText(src *Source) (string, bool) {
	lines := make([]string, 0, len(src.Req.Vehicles.Items))
	for _, v := range src.Req.Vehicles.Items {
		lines = append(lines, VehicleLine(v))
	}
	return strings.Join(lines, "\n"), len(lines) > 0
}

func householdText(src *Source) (string, bool) {
	lines := make([]string, 0, len(src.Req.Household.Items))
	for _, m := range src.Req.Household.Items {
		lines = append(lines, MemberLine(m))
	}
	return strings.Join(lines, "\n"), len(lines) > 0
}

func vehicleVINs(src *Source) (string, bool) {
	vins := make([]string, 0, len(src.Req.Vehicles.Items))
	for _, v := range src.Req.Vehicles.Items {
		if !v.VIN.Blank() {
			vins = append(vins, strings.ToUpper(v.VIN.String()))
		}
	}
	if len(vins) == 0 {
		return "", false
	}
	b, _ := json.Marshal(vins)
	return string(b), true
}
