package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Invoice is one sale from the sales collection.
type Invoice struct {
	ID            string
	Total         Number
	PaymentMethod string
	Date          string
	DownPayment   *DownPayment
	Items         []InvoiceItem

	dateKey string
	fields  map[string]json.RawMessage
	invalid json.RawMessage
}

type DownPayment struct {
	Enabled bool
	// EnabledQuoted is set when enabled arrived as "true" or "false".
	EnabledQuoted bool
	Amount        Number
	Remaining     Number

	fields map[string]json.RawMessage
}

type InvoiceItem struct {
	Price    Number
	Quantity Number

	fields  map[string]json.RawMessage
	invalid json.RawMessage
}

func ParseInvoice(raw json.RawMessage) (Invoice, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Invoice{}, fmt.Errorf("%w: invoice is not an object", ErrMalformedRecord)
	}

	inv := Invoice{
		ID:            textOf(fields["id"]),
		PaymentMethod: textOf(fields["paymentMethod"]),
		fields:        fields,
	}
	if v, ok := fields["total"]; ok {
		if err := json.Unmarshal(v, &inv.Total); err != nil {
			return Invoice{}, fmt.Errorf("invoice %s total: %w", inv.ID, err)
		}
	}
	for _, key := range []string{"date", "createdAt"} {
		if text := textOf(fields[key]); text != "" {
			inv.Date, inv.dateKey = text, key
			break
		}
	}
	if v, ok := fields["downPayment"]; ok && !isNull(v) {
		dp, err := parseDownPayment(v)
		if err != nil {
			return Invoice{}, fmt.Errorf("invoice %s down payment: %w", inv.ID, err)
		}
		inv.DownPayment = &dp
	}
	if v, ok := fields["items"]; ok && !isNull(v) {
		var rawItems []json.RawMessage
		if err := json.Unmarshal(v, &rawItems); err != nil {
			return Invoice{}, fmt.Errorf("%w: invoice %s items is not an array", ErrMalformedRecord, inv.ID)
		}
		inv.Items = make([]InvoiceItem, 0, len(rawItems))
		for _, item := range rawItems {
			inv.Items = append(inv.Items, parseInvoiceItem(item))
		}
	}
	return inv, nil
}

func MalformedInvoice(raw json.RawMessage) Invoice {
	return Invoice{invalid: cloneRaw(raw)}
}

func (inv Invoice) Malformed() bool {
	return inv.invalid != nil
}

// IsPartial reports an invoice that still has an outstanding balance.
func (inv Invoice) IsPartial() bool {
	dp := inv.DownPayment
	return dp != nil && dp.Enabled && dp.Remaining.Decimal().IsPositive()
}

func (inv *Invoice) UnmarshalJSON(data []byte) error {
	parsed, err := ParseInvoice(data)
	if err != nil {
		return err
	}
	*inv = parsed
	return nil
}

func (inv Invoice) MarshalJSON() ([]byte, error) {
	if inv.invalid != nil {
		return inv.invalid, nil
	}
	out := cloneFields(inv.fields, 6)
	putText(out, "id", inv.ID)
	putNumber(out, "total", inv.Total)
	putText(out, "paymentMethod", inv.PaymentMethod)
	dateKey := inv.dateKey
	if dateKey == "" {
		dateKey = "date"
	}
	putText(out, dateKey, inv.Date)
	if inv.DownPayment != nil {
		encoded, err := json.Marshal(inv.DownPayment)
		if err != nil {
			return nil, err
		}
		out["downPayment"] = encoded
	}
	if inv.Items != nil {
		encoded, err := json.Marshal(inv.Items)
		if err != nil {
			return nil, err
		}
		out["items"] = encoded
	}
	return json.Marshal(out)
}

func parseDownPayment(raw json.RawMessage) (DownPayment, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return DownPayment{}, fmt.Errorf("%w: not an object", ErrMalformedRecord)
	}
	dp := DownPayment{fields: fields}
	if v, ok := fields["enabled"]; ok {
		enabled, quoted, err := parseFlag(v)
		if err != nil {
			return DownPayment{}, fmt.Errorf("enabled: %w", err)
		}
		dp.Enabled, dp.EnabledQuoted = enabled, quoted
	}
	if v, ok := fields["amount"]; ok {
		if err := json.Unmarshal(v, &dp.Amount); err != nil {
			return DownPayment{}, err
		}
	}
	if v, ok := fields["remaining"]; ok {
		if err := json.Unmarshal(v, &dp.Remaining); err != nil {
			return DownPayment{}, err
		}
	}
	return dp, nil
}

func (dp DownPayment) MarshalJSON() ([]byte, error) {
	out := cloneFields(dp.fields, 3)
	stored, ok := out["enabled"]
	if (!ok && dp.Enabled) || (ok && !dp.EnabledQuoted && isQuoted(stored)) {
		out["enabled"], _ = json.Marshal(dp.Enabled)
	}
	putNumber(out, "amount", dp.Amount)
	putNumber(out, "remaining", dp.Remaining)
	return json.Marshal(out)
}

// parseFlag reads a JSON bool, also accepting the strings "true" and
// "false". null reads as false.
func parseFlag(raw json.RawMessage) (value, quoted bool, err error) {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return false, false, nil
	}
	if isQuoted(raw) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return false, false, err
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true":
			return true, true, nil
		case "false":
			return false, true, nil
		}
		return false, false, fmt.Errorf("%w: %s is not a boolean", ErrMalformedRecord, raw)
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return false, false, fmt.Errorf("%w: %s is not a boolean", ErrMalformedRecord, raw)
	}
	return value, false, nil
}

func parseInvoiceItem(raw json.RawMessage) InvoiceItem {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return InvoiceItem{invalid: cloneRaw(raw)}
	}
	item := InvoiceItem{fields: fields}
	if v, ok := fields["price"]; ok {
		if err := json.Unmarshal(v, &item.Price); err != nil {
			return InvoiceItem{invalid: cloneRaw(raw)}
		}
	}
	if v, ok := fields["quantity"]; ok {
		if err := json.Unmarshal(v, &item.Quantity); err != nil {
			return InvoiceItem{invalid: cloneRaw(raw)}
		}
	}
	return item
}

func (item InvoiceItem) Malformed() bool {
	return item.invalid != nil
}

func (item InvoiceItem) MarshalJSON() ([]byte, error) {
	if item.invalid != nil {
		return item.invalid, nil
	}
	out := cloneFields(item.fields, 2)
	putNumber(out, "price", item.Price)
	putNumber(out, "quantity", item.Quantity)
	return json.Marshal(out)
}
