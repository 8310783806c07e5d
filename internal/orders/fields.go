package orders

import (
	"encoding/json"
	"strconv"
	"strings"

	"retainer/internal/intake"
	"retainer/internal/shopify"
)

// OrderField maps attribute names (already normalised) to an order metafield.
type OrderField struct {
	Key     string
	Type    string
	Aliases []string
}

// orderFields is the table of attributes copied onto the order.
var orderFields = []OrderField{
	{Key: "retainer_plan", Type: shopify.TypeText, Aliases: []string{"retainer_plan", "plan"}},
	{Key: "retainer_term", Type: shopify.TypeText, Aliases: []string{"retainer_term", "term"}},
	{Key: "intake_email", Type: shopify.TypeText, Aliases: []string{"intake_email", "email"}},
	{Key: "dob", Type: shopify.TypeDate, Aliases: []string{"dob", "date_of_birth"}},
	{Key: "insurer", Type: shopify.TypeText, Aliases: []string{"insurer"}},
	{Key: "policy_number", Type: shopify.TypeText, Aliases: []string{"policy_number"}},
	{Key: "cars_count", Type: shopify.TypeInteger, Aliases: []string{"cars_count", "cars"}},
	{Key: "household_count", Type: shopify.TypeInteger, Aliases: []string{"household_count"}},
	{Key: "vehicles", Type: shopify.TypeJSON, Aliases: []string{"vehicles", "vehicles_json"}},
	{Key: "household", Type: shopify.TypeJSON, Aliases: []string{"household", "household_json"}},
	{Key: "terms_accepted", Type: shopify.TypeBoolean, Aliases: []string{"terms_accepted"}},
	{Key: "signed_on", Type: shopify.TypeDate, Aliases: []string{"signed_on"}},
	{Key: "signature", Type: shopify.TypeFileRef, Aliases: []string{"signature", "signature_file_id"}},
	{Key: "license_image", Type: shopify.TypeFileRef, Aliases: []string{"license_image", "license_file_id"}},
	{Key: "insurance_card", Type: shopify.TypeFileRef, Aliases: []string{"insurance_card", "insurance_card_file_id"}},
}

// OrderMetafields types the reconciled attributes. Values that do not fit the
// target type are left out.
func OrderMetafields(orderID, namespace string, attrs map[string]string) []shopify.MetafieldInput {
	out := make([]shopify.MetafieldInput, 0, len(orderFields))
	for _, f := range orderFields {
		raw, ok := lookup(attrs, f.Aliases)
		if !ok {
			continue
		}
		v, ok := coerce(f.Type, raw)
		if !ok {
			continue
		}
		out = append(out, shopify.MetafieldInput{
			OwnerID:   orderID,
			Namespace: namespace,
			Key:       f.Key,
			Type:      f.Type,
			Value:     v,
		})
	}
	return out
}

func lookup(attrs map[string]string, aliases []string) (string, bool) {
	for _, a := range aliases {
		if v, ok := attrs[a]; ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func coerce(typ, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	switch typ {
	case shopify.TypeDate:
		return raw, intake.ValidDate(raw)
	case shopify.TypeInteger:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f != float64(int64(f)) {
			return "", false
		}
		return strconv.FormatInt(int64(f), 10), true
	case shopify.TypeBoolean:
		var fl intake.Flag
		_ = json.Unmarshal([]byte(strconv.Quote(raw)), &fl)
		return strconv.FormatBool(fl.Value), fl.Set
	case shopify.TypeJSON:
		var v []json.RawMessage
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return "", false
		}
		return raw, true
	case shopify.TypeFileRef:
		return raw, strings.HasPrefix(raw, "gid://shopify/")
	default:
		return raw, raw != ""
	}
}

// mirrorable reports whether a stored customer metafield is copied to orders.
func mirrorable(typ string) bool {
	return typ == shopify.TypeFileRef || typ == shopify.TypeJSON || strings.HasPrefix(typ, "list.")
}

// Mirror copies the customer's file, JSON and list metafields onto the order
// for keys the order fields do not already set.
func Mirror(orderID string, have []shopify.MetafieldInput, customer []shopify.Metafield) []shopify.MetafieldInput {
	set := make(map[string]bool, len(have))
	for _, f := range have {
		set[f.Namespace+"."+f.Key] = true
	}
	out := make([]shopify.MetafieldInput, 0, len(customer))
	for _, m := range customer {
		if !mirrorable(m.Type) || strings.TrimSpace(m.Value) == "" || set[m.Namespace+"."+m.Key] {
			continue
		}
		out = append(out, shopify.MetafieldInput{
			OwnerID:   orderID,
			Namespace: m.Namespace,
			Key:       m.Key,
			Type:      m.Type,
			Value:     m.Value,
		})
	}
	return out
}
