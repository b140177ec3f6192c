package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// Document keys. Anything not listed as a reconciled key is passed through
// untouched.
const (
	KeyShifts      = "shifts"
	KeyActiveShift = "activeShift"
	KeySales       = "sales"
	KeyProducts    = "products"
	KeyCustomers   = "customers"
	KeyUsers       = "users"
	KeyStoreInfo   = "storeInfo"
	KeySettings    = "settings"
)

const (
	ShiftStatusActive    = "active"
	ShiftStatusCompleted = "completed"
	ShiftStatusEnded     = "ended"
)

var ErrMalformedRecord = errors.New("malformed record")

// Document is the whole persisted key space of the POS. Shifts and Sales are
// decoded; ActiveShift is kept raw because deciding whether it parses is part
// of reconciliation. Extra holds every other key exactly as it was stored.
type Document struct {
	Shifts        []Shift
	ActiveShift   json.RawMessage
	Sales         []Invoice
	Extra         map[string][]byte
	ParseFailures []ParseFailure
}

func NewDocument() Document {
	return Document{Extra: make(map[string][]byte)}
}

// ParseFailure records a unit of the document that could not be decoded.
// Index is -1 when the whole collection is affected.
type ParseFailure struct {
	Key    string `json:"key"`
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

const (
	RuleDuplicateID          = "duplicate_id"
	RuleMultipleActive       = "multiple_active"
	RuleStaleActive          = "stale_active"
	RuleContradictoryEndTime = "contradictory_end_time"
	RulePointerParse         = "active_pointer_parse_failure"
	RulePointerNotActive     = "active_pointer_not_active"
	RulePointerTerminalShift = "active_pointer_terminal_shift"
	RuleNumericString        = "numeric_string"
	RuleBooleanString        = "boolean_string"
	RuleMissingDate          = "missing_date"
	RuleDownPaymentRemainder = "down_payment_remainder"
)

const (
	ActionRemoved    = "removed"
	ActionEnded      = "ended"
	ActionCompleted  = "completed"
	ActionCleared    = "cleared"
	ActionCoerced    = "coerced"
	ActionStamped    = "stamped"
	ActionRecomputed = "recomputed"
	ActionNone       = "none"
)

const (
	EntityShift        = "shift"
	EntityActiveShift  = "active_shift"
	EntityInvoice      = "invoice"
	ReasonParseFailure = "parse failure"
	ReasonNonActive    = "non-active status"
)

// Violation is one broken invariant and the correction applied (or that
// would be applied, for a read-only validation). Advisory violations are
// reported but never corrected.
type Violation struct {
	Rule     string `json:"rule"`
	Entity   string `json:"entity"`
	ID       string `json:"id,omitempty"`
	Message  string `json:"message"`
	Action   string `json:"action"`
	Advisory bool   `json:"advisory,omitempty"`
}

type ValidationResult struct {
	IsValid         bool           `json:"is_valid"`
	Violations      []Violation    `json:"violations"`
	ParseFailures   []ParseFailure `json:"parse_failures,omitempty"`
	PartialInvoices int            `json:"partial_invoices"`
	CheckedAt       time.Time      `json:"checked_at"`
}

type RepairResult struct {
	RunID             string         `json:"run_id"`
	Success           bool           `json:"success"`
	FixedShifts       int            `json:"fixed_shifts"`
	FixedInvoices     int            `json:"fixed_invoices"`
	RemovedDuplicates int            `json:"removed_duplicates"`
	Persisted         bool           `json:"persisted"`
	Violations        []Violation    `json:"violations"`
	ParseFailures     []ParseFailure `json:"parse_failures,omitempty"`
	StartedAt         time.Time      `json:"started_at"`
	FinishedAt        time.Time      `json:"finished_at"`
}

// Changed reports whether the pass mutated the document.
func (r RepairResult) Changed() bool {
	return r.FixedShifts > 0 || r.FixedInvoices > 0 || r.RemovedDuplicates > 0
}

type ResetResult struct {
	RunID   string    `json:"run_id"`
	ResetAt time.Time `json:"reset_at"`
	Keys    []string  `json:"keys"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// UserAccount mirrors a record of the users collection. A missing active
// flag means the account is active.
type UserAccount struct {
	ID        string `json:"id,omitempty"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	Active    *bool  `json:"active,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

func (u UserAccount) IsActive() bool {
	return u.Active == nil || *u.Active
}

type ResetRequest struct {
	ManagerPIN string `json:"manager_pin"`
	Confirm    string `json:"confirm"`
}
