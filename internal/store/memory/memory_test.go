package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"posdoctor/internal/domain"
)

func TestSaveReplacesKeySpace(t *testing.T) {
	ctx := context.Background()
	s := NewWithValues(map[string][]byte{
		domain.KeyShifts:      []byte(`[{"id":"A","status":"active"}]`),
		domain.KeyActiveShift: []byte(`{"id":"A","status":"completed"}`),
		domain.KeyProducts:    []byte(`[{"sku":"P1"}]`),
	})

	doc, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, doc.Shifts, 1)

	doc.ActiveShift = nil
	require.NoError(t, s.Save(ctx, doc))
	assert.Equal(t, 1, s.Saves())

	_, ok := s.Value(domain.KeyActiveShift)
	assert.False(t, ok, "cleared pointer must be removed from the key space")
	products, ok := s.Value(domain.KeyProducts)
	require.True(t, ok)
	assert.Equal(t, `[{"sku":"P1"}]`, string(products))
}

func TestNewWithValuesCopiesInput(t *testing.T) {
	values := map[string][]byte{domain.KeySales: []byte(`[]`)}
	s := NewWithValues(values)
	values[domain.KeySales][0] = 'x'

	got, ok := s.Value(domain.KeySales)
	require.True(t, ok)
	assert.Equal(t, `[]`, string(got))
}

func TestNewSeededUsesSeedPassword(t *testing.T) {
	t.Setenv("SEED_ADMIN_PASSWORD", "s3cure-seed-pass")

	s := NewSeeded()
	raw, ok := s.Value(domain.KeyUsers)
	require.True(t, ok)

	var users []domain.UserAccount
	require.NoError(t, json.Unmarshal(raw, &users))
	require.Len(t, users, 1)
	assert.Equal(t, "admin", users[0].Username)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users[0].Password), []byte("s3cure-seed-pass")))
}
