package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"posdoctor/internal/domain"
)

// DecodeKeyspace builds a document from raw key/value pairs. Malformed
// collections come back empty and malformed records are kept verbatim; both
// are listed in ParseFailures instead of failing the load.
func DecodeKeyspace(values map[string][]byte) domain.Document {
	doc := domain.NewDocument()
	for key, value := range values {
		switch key {
		case domain.KeyShifts:
			doc.Shifts = decodeShifts(domain.UnwrapJSON(value), &doc)
		case domain.KeySales:
			doc.Sales = decodeInvoices(domain.UnwrapJSON(value), &doc)
		case domain.KeyActiveShift:
			doc.ActiveShift = decodePointer(domain.UnwrapJSON(value))
		default:
			doc.Extra[key] = append([]byte(nil), value...)
		}
	}
	sort.Slice(doc.ParseFailures, func(i, j int) bool {
		a, b := doc.ParseFailures[i], doc.ParseFailures[j]
		if a.Key != b.Key {
			return a.Key < b.Key
		}
		return a.Index < b.Index
	})
	return doc
}

// EncodeKeyspace is the inverse of DecodeKeyspace. Nil collections are
// omitted, an absent pointer removes the activeShift key.
func EncodeKeyspace(doc domain.Document) (map[string][]byte, error) {
	values := make(map[string][]byte, len(doc.Extra)+3)
	for key, value := range doc.Extra {
		values[key] = value
	}
	if doc.Shifts != nil {
		encoded, err := json.Marshal(doc.Shifts)
		if err != nil {
			return nil, fmt.Errorf("encode shifts: %w", err)
		}
		values[domain.KeyShifts] = encoded
	}
	if doc.Sales != nil {
		encoded, err := json.Marshal(doc.Sales)
		if err != nil {
			return nil, fmt.Errorf("encode sales: %w", err)
		}
		values[domain.KeySales] = encoded
	}
	if doc.ActiveShift != nil {
		values[domain.KeyActiveShift] = doc.ActiveShift
	}
	return values, nil
}

// DecodeObject reads a whole-document JSON object such as data.json.
func DecodeObject(data []byte) domain.Document {
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.NewDocument()
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil || top == nil {
		doc := domain.NewDocument()
		doc.ParseFailures = append(doc.ParseFailures, domain.ParseFailure{Key: "document", Index: -1, Reason: "document is not a JSON object"})
		return doc
	}
	values := make(map[string][]byte, len(top))
	for key, value := range top {
		values[key] = value
	}
	return DecodeKeyspace(values)
}

// EncodeObject writes the document as one indented JSON object. Values that
// are not JSON (plain browser-storage strings) are written as JSON strings.
func EncodeObject(doc domain.Document) ([]byte, error) {
	values, err := EncodeKeyspace(doc)
	if err != nil {
		return nil, err
	}
	top := make(map[string]json.RawMessage, len(values))
	for key, value := range values {
		if json.Valid(value) {
			top[key] = value
			continue
		}
		quoted, _ := json.Marshal(string(value))
		top[key] = quoted
	}
	return json.MarshalIndent(top, "", "  ")
}

func decodeShifts(value []byte, doc *domain.Document) []domain.Shift {
	var records []json.RawMessage
	if err := json.Unmarshal(value, &records); err != nil {
		doc.ParseFailures = append(doc.ParseFailures, collectionFailure(domain.KeyShifts, err))
		return []domain.Shift{}
	}
	if records == nil {
		return []domain.Shift{}
	}
	shifts := make([]domain.Shift, 0, len(records))
	for i, raw := range records {
		shift, err := domain.ParseShift(raw)
		if err != nil {
			doc.ParseFailures = append(doc.ParseFailures, domain.ParseFailure{Key: domain.KeyShifts, Index: i, Reason: err.Error()})
			shift = domain.MalformedShift(raw)
		}
		shifts = append(shifts, shift)
	}
	return shifts
}

func decodeInvoices(value []byte, doc *domain.Document) []domain.Invoice {
	var records []json.RawMessage
	if err := json.Unmarshal(value, &records); err != nil {
		doc.ParseFailures = append(doc.ParseFailures, collectionFailure(domain.KeySales, err))
		return []domain.Invoice{}
	}
	if records == nil {
		return []domain.Invoice{}
	}
	invoices := make([]domain.Invoice, 0, len(records))
	for i, raw := range records {
		inv, err := domain.ParseInvoice(raw)
		if err != nil {
			doc.ParseFailures = append(doc.ParseFailures, domain.ParseFailure{Key: domain.KeySales, Index: i, Reason: err.Error()})
			inv = domain.MalformedInvoice(raw)
		}
		invoices = append(invoices, inv)
	}
	return invoices
}

// decodePointer keeps the pointer raw. Bytes that are not JSON at all are
// wrapped in a JSON string so the reconciler sees a parse failure and the
// document stays encodable.
func decodePointer(value []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if !json.Valid(trimmed) {
		quoted, _ := json.Marshal(string(value))
		return quoted
	}
	return append(json.RawMessage(nil), trimmed...)
}

func collectionFailure(key string, err error) domain.ParseFailure {
	return domain.ParseFailure{Key: key, Index: -1, Reason: fmt.Sprintf("collection is not a JSON array: %v", err)}
}
