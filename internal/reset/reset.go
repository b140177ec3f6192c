// Package reset builds the factory-default POS document used to recover from
// unrecoverable corruption.
package reset

import (
	"encoding/json"
	"time"

	"posdoctor/internal/domain"
)

const (
	AdminUsername   = "admin"
	DefaultCurrency = "USD"
	DefaultTheme    = "light"
)

type adminUser struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"createdAt"`
}

type storeInfo struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
	TaxNumber string `json:"taxNumber"`
}

type settings struct {
	Currency string  `json:"currency"`
	Theme    string  `json:"theme"`
	TaxRate  float64 `json:"taxRate"`
}

// Keys lists every key a reset document writes, in a stable order.
func Keys() []string {
	return []string{
		domain.KeyProducts,
		domain.KeyCustomers,
		domain.KeySales,
		domain.KeyShifts,
		domain.KeyUsers,
		domain.KeyStoreInfo,
		domain.KeySettings,
	}
}

// Document returns the default document: empty collections, no active shift
// pointer, one admin account and default store settings. passwordHash must
// already be a bcrypt hash.
func Document(now time.Time, adminID string, passwordHash string) domain.Document {
	doc := domain.NewDocument()
	doc.Shifts = []domain.Shift{}
	doc.Sales = []domain.Invoice{}
	doc.Extra[domain.KeyProducts] = []byte(`[]`)
	doc.Extra[domain.KeyCustomers] = []byte(`[]`)
	doc.Extra[domain.KeyUsers] = mustJSON([]adminUser{{
		ID:        adminID,
		Username:  AdminUsername,
		Password:  passwordHash,
		Role:      "admin",
		Name:      "Administrator",
		Active:    true,
		CreatedAt: domain.FormatTimestamp(now),
	}})
	doc.Extra[domain.KeyStoreInfo] = mustJSON(storeInfo{Name: "My Store"})
	doc.Extra[domain.KeySettings] = mustJSON(settings{Currency: DefaultCurrency, Theme: DefaultTheme})
	return doc
}

func mustJSON(v any) []byte {
	out, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return out
}
