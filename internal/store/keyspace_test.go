package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posdoctor/internal/domain"
)

func TestDecodeKeyspaceMalformedShiftsCollection(t *testing.T) {
	doc := DecodeKeyspace(map[string][]byte{
		domain.KeyShifts: []byte(`{not json`),
		domain.KeySales:  []byte(`[]`),
	})

	assert.NotNil(t, doc.Shifts)
	assert.Empty(t, doc.Shifts)
	require.Len(t, doc.ParseFailures, 1)
	assert.Equal(t, domain.KeyShifts, doc.ParseFailures[0].Key)
	assert.Equal(t, -1, doc.ParseFailures[0].Index)
}

func TestDecodeKeyspaceKeepsMalformedRecords(t *testing.T) {
	doc := DecodeKeyspace(map[string][]byte{
		domain.KeyShifts: []byte(`[{"id":"A","status":"active"}, 7, {"id":"B","status":"completed"}]`),
	})

	require.Len(t, doc.Shifts, 3)
	assert.True(t, doc.Shifts[1].Malformed())
	require.Len(t, doc.ParseFailures, 1)
	assert.Equal(t, 1, doc.ParseFailures[0].Index)

	values, err := EncodeKeyspace(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"A","status":"active"}, 7, {"id":"B","status":"completed"}]`, string(values[domain.KeyShifts]))
}

func TestDecodeKeyspaceUnwrapsBrowserStorageStrings(t *testing.T) {
	doc := DecodeKeyspace(map[string][]byte{
		domain.KeyShifts:      []byte(`"[{\"id\":\"A\",\"status\":\"active\"}]"`),
		domain.KeyActiveShift: []byte(`"{\"id\":\"A\",\"status\":\"active\"}"`),
		"theme":               []byte(`dark`),
	})

	require.Len(t, doc.Shifts, 1)
	assert.Equal(t, "A", doc.Shifts[0].ID)
	assert.JSONEq(t, `{"id":"A","status":"active"}`, string(doc.ActiveShift))
	assert.Equal(t, []byte(`dark`), doc.Extra["theme"])
	assert.Empty(t, doc.ParseFailures)
}

func TestDecodeKeyspaceWrapsInvalidPointer(t *testing.T) {
	doc := DecodeKeyspace(map[string][]byte{domain.KeyActiveShift: []byte(`{broken`)})
	require.NotNil(t, doc.ActiveShift)
	assert.True(t, json.Valid(doc.ActiveShift))

	doc = DecodeKeyspace(map[string][]byte{domain.KeyActiveShift: []byte(`null`)})
	assert.Nil(t, doc.ActiveShift)
}

func TestEncodeKeyspaceOmitsAbsentPointer(t *testing.T) {
	doc := domain.NewDocument()
	doc.Shifts = []domain.Shift{}
	doc.Extra[domain.KeyProducts] = []byte(`[{"sku":"X"}]`)

	values, err := EncodeKeyspace(doc)
	require.NoError(t, err)
	_, hasPointer := values[domain.KeyActiveShift]
	assert.False(t, hasPointer)
	_, hasSales := values[domain.KeySales]
	assert.False(t, hasSales)
	assert.Equal(t, `[]`, string(values[domain.KeyShifts]))
	assert.Equal(t, `[{"sku":"X"}]`, string(values[domain.KeyProducts]))
}

func TestDecodeObjectMalformedDocument(t *testing.T) {
	doc := DecodeObject([]byte(`[1,2,3]`))
	require.Len(t, doc.ParseFailures, 1)
	assert.Equal(t, "document", doc.ParseFailures[0].Key)
	assert.Nil(t, doc.Shifts)

	empty := DecodeObject(nil)
	assert.Empty(t, empty.ParseFailures)
}

func TestEncodeObjectQuotesPlainStrings(t *testing.T) {
	doc := domain.NewDocument()
	doc.Extra["theme"] = []byte(`dark`)
	doc.Extra[domain.KeySettings] = []byte(`{"currency":"USD"}`)

	out, err := EncodeObject(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme":"dark","settings":{"currency":"USD"}}`, string(out))

	back := DecodeObject(out)
	assert.JSONEq(t, `{"currency":"USD"}`, string(back.Extra[domain.KeySettings]))
}
