package orders

import (
	"strings"

	"retainer/internal/shopify"
)

// NormalizeKey folds attribute names so "_Retainer Plan" and "retainer-plan"
// land on the same key.
func NormalizeKey(k string) string {
	k = strings.TrimSpace(k)
	k = strings.TrimLeft(k, "_")
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(k)
}

// Attributes returns the order note attributes and the merged line-item
// properties as two flat maps. Blank values are dropped; when several line
// items carry the same key the first one wins.
func Attributes(o *shopify.OrderWebhook) (notes, props map[string]string) {
	notes = map[string]string{}
	for _, nv := range o.NoteAttributes {
		put(notes, nv, true)
	}
	props = map[string]string{}
	for _, li := range o.LineItems {
		for _, nv := range li.Properties {
			put(props, nv, false)
		}
	}
	return notes, props
}

func put(m map[string]string, nv shopify.NameValue, overwrite bool) {
	k := NormalizeKey(nv.Name)
	v := strings.TrimSpace(nv.ValueString())
	if k == "" || v == "" {
		return
	}
	if _, ok := m[k]; ok && !overwrite {
		return
	}
	m[k] = v
}

// Reconcile merges both maps; line-item properties win on collision.
func Reconcile(notes, props map[string]string) map[string]string {
	out := make(map[string]string, len(notes)+len(props))
	for k, v := range notes {
		out[k] = v
	}
	for k, v := range props {
		out[k] = v
	}
	return out
}
