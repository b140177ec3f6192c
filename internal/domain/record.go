package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// ISOMillis matches the timestamps written by the POS front end.
const ISOMillis = "2006-01-02T15:04:05.000Z"

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(ISOMillis)
}

// ParseTimestamp accepts ISO-8601 strings and epoch milliseconds.
func ParseTimestamp(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	if ms, err := strconv.ParseInt(text, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), true
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", time.DateTime, time.DateOnly} {
		if t, err := time.Parse(layout, text); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// UnwrapJSON returns the inner document when value is a JSON string that
// itself holds a JSON array or object, the way browser storage keeps values.
func UnwrapJSON(value []byte) []byte {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return value
	}
	var inner string
	if err := json.Unmarshal(trimmed, &inner); err != nil {
		return value
	}
	candidate := strings.TrimSpace(inner)
	if candidate == "" || (candidate[0] != '[' && candidate[0] != '{') || !json.Valid([]byte(candidate)) {
		return value
	}
	return []byte(candidate)
}

func isQuoted(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '"'
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// textOf returns the text of a JSON string or number, or "" for anything else.
func textOf(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	if raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9') {
		return string(raw)
	}
	return ""
}

func stringOf(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func cloneFields(fields map[string]json.RawMessage, extra int) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(fields)+extra)
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func cloneRaw(raw []byte) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

// putText writes value under key unless it is empty or already equal to the
// stored text, so untouched fields keep their original encoding.
func putText(fields map[string]json.RawMessage, key string, value string) {
	if value == "" || textOf(fields[key]) == value {
		return
	}
	encoded, _ := json.Marshal(value)
	fields[key] = encoded
}

func putNumber(fields map[string]json.RawMessage, key string, n Number) {
	if !n.Present() {
		return
	}
	encoded, _ := n.MarshalJSON()
	fields[key] = encoded
}
