package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Number is a numeric JSON field that may have been stored as a numeric
// string. Values read from storage re-encode byte-for-byte until replaced.
type Number struct {
	Value decimal.Decimal
	// Quoted is set when the value arrived as a JSON string.
	Quoted bool
	// Valid is false when a quoted value does not hold a number.
	Valid bool
	set   bool
	raw   json.RawMessage
}

func NumberOf(d decimal.Decimal) Number {
	return Number{Value: d, Valid: true, set: true}
}

func NumberFromInt(v int64) Number {
	return NumberOf(decimal.NewFromInt(v))
}

// IsSet is false for absent and null values.
func (n Number) IsSet() bool {
	return n.set
}

// Present is true when the field existed in the record, even as null.
func (n Number) Present() bool {
	return n.set || n.raw != nil
}

// Decimal returns the numeric value, zero when unset or not numeric.
func (n Number) Decimal() decimal.Decimal {
	if !n.set || !n.Valid {
		return decimal.Zero
	}
	return n.Value
}

func (n *Number) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	*n = Number{raw: cloneRaw(raw)}
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty number", ErrMalformedRecord)
	}
	if isNull(raw) {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		n.set, n.Quoted = true, true
		if d, err := decimal.NewFromString(strings.TrimSpace(s)); err == nil {
			n.Value, n.Valid = d, true
		}
		return nil
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return fmt.Errorf("%w: %s is not a number", ErrMalformedRecord, raw)
	}
	n.Value, n.Valid, n.set = d, true, true
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if n.raw != nil {
		return n.raw, nil
	}
	if !n.set {
		return []byte("null"), nil
	}
	return []byte(n.Value.String()), nil
}

func (n Number) String() string {
	if !n.set {
		return "null"
	}
	if n.raw != nil {
		return string(n.raw)
	}
	return n.Value.String()
}
