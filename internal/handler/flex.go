package handler

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// flexDecimal accepts a JSON number or a numeric string. Anything else,
// including null, decodes to zero instead of failing the request.
type flexDecimal struct {
	decimal.Decimal
}

func (f *flexDecimal) UnmarshalJSON(b []byte) error {
	f.Decimal = decimal.Zero
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		s = strings.TrimSpace(s)
	}
	if d, err := decimal.NewFromString(s); err == nil {
		f.Decimal = d
	}
	return nil
}

// flexInt accepts the same input as flexDecimal. Unparseable values decode
// to zero, but a number with a fraction or outside the int32 range is a
// type error carrying the JSON field path.
type flexInt int

var (
	minFlexInt = decimal.NewFromInt(math.MinInt32)
	maxFlexInt = decimal.NewFromInt(math.MaxInt32)
)

func (f *flexInt) UnmarshalJSON(b []byte) error {
	*f = 0
	var d flexDecimal
	_ = d.UnmarshalJSON(b)
	// The exponent is checked before IsInteger and Cmp, which expand it.
	if exp := d.Exponent(); exp > 9 || exp < -18 ||
		!d.IsInteger() || d.LessThan(minFlexInt) || d.GreaterThan(maxFlexInt) {
		return &json.UnmarshalTypeError{Value: "number " + string(bytes.TrimSpace(b)), Type: reflect.TypeOf(0)}
	}
	*f = flexInt(d.IntPart())
	return nil
}

// flexBool accepts true/false or their string forms. Other values leave it
// unset.
type flexBool struct {
	Value bool
	Set   bool
}

func (f *flexBool) UnmarshalJSON(b []byte) error {
	switch strings.Trim(strings.ToLower(string(bytes.TrimSpace(b))), `"`) {
	case "true", "1":
		*f = flexBool{Value: true, Set: true}
	case "false", "0":
		*f = flexBool{Value: false, Set: true}
	}
	return nil
}

// or returns the decoded value, or def when the field was absent.
func (f flexBool) or(def bool) bool {
	if f.Set {
		return f.Value
	}
	return def
}

// flexTime accepts RFC 3339 timestamps, datetime-local values and plain
// dates. Empty strings and null decode to nil.
type flexTime struct {
	Time *time.Time
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	f.Time = nil
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			f.Time = &t
			return nil
		}
	}
	return &time.ParseError{Layout: time.RFC3339, Value: s}
}
