package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Shift is one work session. Fields the reconciler does not know about are
// kept verbatim and written back unchanged.
type Shift struct {
	ID        string
	Status    string
	StartTime string
	EndTime   string

	fields  map[string]json.RawMessage
	invalid json.RawMessage
}

func ParseShift(raw json.RawMessage) (Shift, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Shift{}, fmt.Errorf("%w: shift is not an object", ErrMalformedRecord)
	}
	id := textOf(fields["id"])
	if id == "" {
		return Shift{}, fmt.Errorf("%w: shift has no id", ErrMalformedRecord)
	}
	status, ok := stringOf(fields["status"])
	if !ok {
		return Shift{}, fmt.Errorf("%w: shift %s has no status", ErrMalformedRecord, id)
	}
	return Shift{
		ID:        id,
		Status:    status,
		StartTime: textOf(fields["startTime"]),
		EndTime:   textOf(fields["endTime"]),
		fields:    fields,
	}, nil
}

// MalformedShift wraps a record that failed ParseShift so it survives a
// save untouched.
func MalformedShift(raw json.RawMessage) Shift {
	return Shift{invalid: cloneRaw(raw)}
}

func (s Shift) Malformed() bool {
	return s.invalid != nil
}

// Key identifies the shift for deduplication. The numeric id 1 and the
// string id "1" are different keys.
func (s Shift) Key() string {
	if raw, ok := s.fields["id"]; ok && !isQuoted(raw) {
		return "n:" + s.ID
	}
	return "s:" + s.ID
}

func (s Shift) IsActive() bool {
	return !s.Malformed() && s.Status == ShiftStatusActive
}

func (s Shift) IsTerminal() bool {
	return s.Status == ShiftStatusCompleted || s.Status == ShiftStatusEnded
}

// HasEndTime reports a populated endTime; null, "" and a zero epoch do not
// count.
func (s Shift) HasEndTime() bool {
	if s.EndTime == "" {
		return false
	}
	if ms, err := strconv.ParseFloat(s.EndTime, 64); err == nil && ms == 0 {
		return false
	}
	return true
}

func (s Shift) Started() (time.Time, bool) {
	return ParseTimestamp(s.StartTime)
}

func (s *Shift) UnmarshalJSON(data []byte) error {
	parsed, err := ParseShift(data)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Shift) MarshalJSON() ([]byte, error) {
	if s.invalid != nil {
		return s.invalid, nil
	}
	out := cloneFields(s.fields, 4)
	putText(out, "id", s.ID)
	putText(out, "status", s.Status)
	putText(out, "startTime", s.StartTime)
	putText(out, "endTime", s.EndTime)
	return json.Marshal(out)
}

// ActivePointer is the cached activeShift record. Only the fields needed to
// judge it are decoded.
type ActivePointer struct {
	ID     string
	Status string
}

// ParseActivePointer requires an object with a string status; the id may be
// missing.
func ParseActivePointer(raw json.RawMessage) (ActivePointer, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return ActivePointer{}, fmt.Errorf("%w: active shift is not an object", ErrMalformedRecord)
	}
	status, ok := stringOf(fields["status"])
	if !ok {
		return ActivePointer{}, fmt.Errorf("%w: active shift has no status", ErrMalformedRecord)
	}
	return ActivePointer{ID: textOf(fields["id"]), Status: status}, nil
}
