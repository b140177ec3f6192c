package reconcile

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"posdoctor/internal/domain"
)

type InvoiceReport struct {
	Violations []domain.Violation
	Fixed      int
	// Partial counts invoices with an outstanding balance after the pass.
	Partial int
}

// ReconcileInvoices coerces numeric strings, stamps missing dates and
// recomputes down payment remainders. Invoices are never removed or
// reordered; malformed records pass through untouched.
func ReconcileInvoices(invoices []domain.Invoice, now time.Time) ([]domain.Invoice, int, InvoiceReport) {
	var report InvoiceReport
	if invoices == nil {
		return nil, 0, report
	}
	out := make([]domain.Invoice, len(invoices))
	for i, inv := range invoices {
		if !inv.Malformed() {
			inv = reconcileInvoice(inv, now, &report)
			if inv.IsPartial() {
				report.Partial++
			}
		}
		out[i] = inv
	}
	return out, report.Fixed, report
}

func reconcileInvoice(inv domain.Invoice, now time.Time, report *InvoiceReport) domain.Invoice {
	if n, ok := coerce(inv.Total, false); ok {
		report.numeric(inv.ID, "total", inv.Total, n)
		inv.Total = n
	}

	if inv.Items != nil {
		items := make([]domain.InvoiceItem, len(inv.Items))
		copy(items, inv.Items)
		for i := range items {
			if items[i].Malformed() {
				continue
			}
			if n, ok := coerce(items[i].Price, false); ok {
				report.numeric(inv.ID, fmt.Sprintf("items[%d].price", i), items[i].Price, n)
				items[i].Price = n
			}
			if n, ok := coerce(items[i].Quantity, true); ok {
				report.numeric(inv.ID, fmt.Sprintf("items[%d].quantity", i), items[i].Quantity, n)
				items[i].Quantity = n
			}
		}
		inv.Items = items
	}

	if inv.Date == "" {
		inv.Date = domain.FormatTimestamp(now)
		report.fix(domain.Violation{
			Rule:    domain.RuleMissingDate,
			Entity:  domain.EntityInvoice,
			ID:      inv.ID,
			Message: fmt.Sprintf("invoice %s has no date; stamped %s", inv.ID, inv.Date),
			Action:  domain.ActionStamped,
		})
	}

	if inv.DownPayment != nil && inv.DownPayment.EnabledQuoted {
		dp := *inv.DownPayment
		dp.EnabledQuoted = false
		report.fix(domain.Violation{
			Rule:    domain.RuleBooleanString,
			Entity:  domain.EntityInvoice,
			ID:      inv.ID,
			Message: fmt.Sprintf("invoice %s downPayment.enabled string coerced to %t", inv.ID, dp.Enabled),
			Action:  domain.ActionCoerced,
		})
		inv.DownPayment = &dp
	}

	if inv.DownPayment != nil && inv.DownPayment.Enabled {
		dp := *inv.DownPayment
		if n, ok := coerce(dp.Amount, false); ok {
			report.numeric(inv.ID, "downPayment.amount", dp.Amount, n)
			dp.Amount = n
		}
		correct := inv.Total.Decimal().Sub(dp.Amount.Decimal())
		if !remainderMatches(dp.Remaining, correct) {
			report.fix(domain.Violation{
				Rule:    domain.RuleDownPaymentRemainder,
				Entity:  domain.EntityInvoice,
				ID:      inv.ID,
				Message: fmt.Sprintf("invoice %s remaining %s, expected %s", inv.ID, dp.Remaining, correct),
				Action:  domain.ActionRecomputed,
			})
			dp.Remaining = domain.NumberOf(correct)
		}
		inv.DownPayment = &dp
	}
	return inv
}

// coerce converts a quoted value to a JSON number. Non-numeric text becomes
// zero. Integers are truncated toward zero.
func coerce(n domain.Number, integer bool) (domain.Number, bool) {
	if !n.IsSet() || !n.Quoted {
		return n, false
	}
	value := n.Decimal()
	if integer {
		value = value.Truncate(0)
	}
	return domain.NumberOf(value), true
}

func remainderMatches(remaining domain.Number, correct decimal.Decimal) bool {
	if !remaining.IsSet() || remaining.Quoted || !remaining.Valid {
		return false
	}
	return remaining.Value.Equal(correct)
}

func (r *InvoiceReport) fix(v domain.Violation) {
	r.Violations = append(r.Violations, v)
	r.Fixed++
}

func (r *InvoiceReport) numeric(id, field string, before, after domain.Number) {
	message := fmt.Sprintf("invoice %s %s %s coerced to %s", id, field, before, after.Value)
	if !before.Valid {
		message = fmt.Sprintf("invoice %s %s %s is not numeric; set to 0", id, field, before)
	}
	r.fix(domain.Violation{
		Rule:    domain.RuleNumericString,
		Entity:  domain.EntityInvoice,
		ID:      id,
		Message: message,
		Action:  domain.ActionCoerced,
	})
}
