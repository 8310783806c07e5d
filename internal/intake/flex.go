package intake

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Text accepts a JSON string or scalar and keeps its trimmed text form.
// Storefront forms are inconsistent about quoting zip codes and years.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		*t = ""
		return nil
	}
	switch x := v.(type) {
	case string:
		*t = Text(strings.TrimSpace(x))
	case float64:
		*t = Text(strconv.FormatFloat(x, 'f', -1, 64))
	case bool:
		*t = Text(strconv.FormatBool(x))
	default:
		*t = ""
	}
	return nil
}

func (t Text) String() string { return string(t) }

func (t Text) Blank() bool { return strings.TrimSpace(string(t)) == "" }

// Flag is a checkbox value: JSON bools, 1/0, or yes/no style strings.
// Unrecognised values leave it unset.
type Flag struct {
	Value bool
	Set   bool
}

func (f *Flag) UnmarshalJSON(b []byte) error {
	*f = Flag{}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	switch x := v.(type) {
	case bool:
		*f = Flag{Value: x, Set: true}
	case float64:
		if x == 1 || x == 0 {
			*f = Flag{Value: x == 1, Set: true}
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "y", "on", "1":
			*f = Flag{Value: true, Set: true}
		case "false", "no", "n", "off", "0":
			*f = Flag{Value: false, Set: true}
		}
	}
	return nil
}

func (f Flag) MarshalJSON() ([]byte, error) {
	if !f.Set {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Count is a numeric form field. Blank or absent leaves it unset; anything
// non-numeric or non-finite counts as 0.
type Count struct {
	Value float64
	Set   bool
}

// maxExactInt is the largest integer a float64 carries without rounding.
const maxExactInt = 1 << 53

func (c *Count) UnmarshalJSON(b []byte) error {
	*c = Count{}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		*c = Count{Set: true}
		return nil
	}
	switch x := v.(type) {
	case nil:
	case float64:
		*c = Count{Value: x, Set: true}
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return nil
		}
		c.Set = true
		if f, err := strconv.ParseFloat(x, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			c.Value = f
		}
	default:
		c.Set = true
	}
	return nil
}

// Int returns the value when it is set and integral.
func (c Count) Int() (int64, bool) {
	if !c.Set {
		return 0, false
	}
	if math.IsNaN(c.Value) || math.IsInf(c.Value, 0) {
		return 0, true
	}
	if c.Value != math.Trunc(c.Value) || math.Abs(c.Value) > maxExactInt {
		return 0, false
	}
	return int64(c.Value), true
}

func (c Count) MarshalJSON() ([]byte, error) {
	if !c.Set {
		return []byte("null"), nil
	}
	return json.Marshal(c.Value)
}

// List decodes an array leniently: a string holding a JSON array is unwrapped,
// anything that is not an array becomes empty, and elements that do not decode
// are dropped. Present records whether the key appeared at all.
type List[T any] struct {
	Items   []T
	Present bool
}

func (l *List[T]) UnmarshalJSON(b []byte) error {
	l.Present = true
	l.Items = []T{}

	raw := []byte(strings.TrimSpace(string(b)))
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		raw = []byte(strings.TrimSpace(s))
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil
	}
	for _, e := range elems {
		var item T
		if err := json.Unmarshal(e, &item); err != nil {
			continue
		}
		if z, ok := any(item).(interface{ IsZero() bool }); ok && z.IsZero() {
			continue
		}
		l.Items = append(l.Items, item)
	}
	return nil
}

func (l List[T]) MarshalJSON() ([]byte, error) {
	if l.Items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.Items)
}
