package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"posdoctor/internal/cache"
	"posdoctor/internal/domain"
	"posdoctor/internal/reconcile"
	"posdoctor/internal/reset"
	"posdoctor/internal/store"
	"posdoctor/internal/xid"
)

var (
	// ErrResetNotConfirmed is returned when a reset request lacks the
	// manager PIN or the confirmation word.
	ErrResetNotConfirmed = errors.New("reset not confirmed")
	// ErrResetNotConfigured means no admin password is available to seed
	// the reset document.
	ErrResetNotConfigured = errors.New("reset admin password not configured")
)

const (
	opValidate = "validate"
	opRepair   = "repair"
	opReset    = "reset"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Reconcile reconcile.Options
	// AdminPassword seeds the admin account of a reset document.
	AdminPassword string
	// ReportTTL bounds how long the last repair report is served; zero keeps
	// it until the next pass.
	ReportTTL time.Duration
	// Now overrides the clock; UTC wall time when nil.
	Now func() time.Time
}

// Service runs reconciliation passes against one document store. Passes are
// serialized so a repair never interleaves with another pass in-process.
type Service struct {
	mu      sync.Mutex
	store   store.DocumentStore
	reports cache.ReportCache
	metrics *Metrics
	log     zerolog.Logger
	opts    Options
	now     func() time.Time
}

func New(st store.DocumentStore, reports cache.ReportCache, metrics *Metrics, logger zerolog.Logger, opts Options) *Service {
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		store:   st,
		reports: reports,
		metrics: metrics,
		log:     logger.With().Str("component", "service").Logger(),
		opts:    opts,
		now:     now,
	}
}

type pass struct {
	doc           domain.Document
	shifts        []domain.Shift
	pointer       json.RawMessage
	sales         []domain.Invoice
	shiftReport   reconcile.ShiftReport
	invoiceFixed  int
	invoiceReport reconcile.InvoiceReport
}

func (p pass) violations() []domain.Violation {
	out := make([]domain.Violation, 0, len(p.shiftReport.Violations)+len(p.invoiceReport.Violations))
	out = append(out, p.shiftReport.Violations...)
	return append(out, p.invoiceReport.Violations...)
}

func (s *Service) run(ctx context.Context, now time.Time) (pass, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return pass{}, fmt.Errorf("load document: %w", err)
	}
	p := pass{doc: doc}
	p.shifts, p.pointer, p.shiftReport = reconcile.ReconcileShifts(doc.Shifts, doc.ActiveShift, now, s.opts.Reconcile)
	p.sales, p.invoiceFixed, p.invoiceReport = reconcile.ReconcileInvoices(doc.Sales, now)
	return p, nil
}

// Validate reports what a repair would change without saving anything.
func (s *Service) Validate(ctx context.Context) (domain.ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	p, err := s.run(ctx, now)
	if err != nil {
		s.metrics.pass(opValidate, "load_error", s.now().Sub(now).Seconds())
		s.log.Error().Err(err).Str("operation", opValidate).Msg("validation failed")
		return domain.ValidationResult{}, err
	}

	violations := p.violations()
	result := domain.ValidationResult{
		IsValid:         true,
		Violations:      violations,
		ParseFailures:   p.doc.ParseFailures,
		PartialInvoices: p.invoiceReport.Partial,
		CheckedAt:       now,
	}
	for _, v := range violations {
		if !v.Advisory {
			result.IsValid = false
			break
		}
	}

	s.logFindings(opValidate, violations, p.doc.ParseFailures)
	s.metrics.violations(opValidate, violations)
	s.metrics.pass(opValidate, outcome(result.IsValid, "valid", "invalid"), s.now().Sub(now).Seconds())
	s.log.Info().
		Bool("is_valid", result.IsValid).
		Int("violations", len(violations)).
		Int("parse_failures", len(result.ParseFailures)).
		Int("partial_invoices", result.PartialInvoices).
		Msg("validation finished")
	return result, nil
}

// Repair runs the shift and invoice reconcilers and saves the document when
// any of them changed it. A failed save returns Success=false together with
// an error wrapping store.ErrPersistence.
func (s *Service) Repair(ctx context.Context) (domain.RepairResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := s.now()
	result := domain.RepairResult{RunID: xid.New("repair"), StartedAt: started}
	logger := s.log.With().Str("run_id", result.RunID).Logger()

	p, err := s.run(ctx, started)
	if err != nil {
		result.FinishedAt = s.now()
		s.metrics.pass(opRepair, "load_error", result.FinishedAt.Sub(started).Seconds())
		logger.Error().Err(err).Msg("repair aborted")
		return result, err
	}

	result.FixedShifts = p.shiftReport.Fixed
	result.FixedInvoices = p.invoiceFixed
	result.RemovedDuplicates = p.shiftReport.RemovedDuplicates
	result.Violations = p.violations()
	result.ParseFailures = p.doc.ParseFailures
	s.logFindings(opRepair, result.Violations, result.ParseFailures)
	s.metrics.violations(opRepair, result.Violations)

	if result.Changed() {
		doc := p.doc
		doc.Shifts, doc.ActiveShift, doc.Sales = p.shifts, p.pointer, p.sales
		if err := s.store.Save(ctx, doc); err != nil {
			if !errors.Is(err, store.ErrPersistence) {
				err = fmt.Errorf("%w: %w", store.ErrPersistence, err)
			}
			result.FinishedAt = s.now()
			s.metrics.pass(opRepair, "persistence_error", result.FinishedAt.Sub(started).Seconds())
			logger.Error().Err(err).Msg("repair could not be saved")
			return result, err
		}
		result.Persisted = true
	}

	result.Success = true
	result.FinishedAt = s.now()
	s.metrics.repaired(result)
	s.metrics.pass(opRepair, outcome(result.Changed(), "repaired", "clean"), result.FinishedAt.Sub(started).Seconds())
	if err := s.reports.Set(ctx, cache.LastRepairKey, &result, s.opts.ReportTTL); err != nil {
		logger.Warn().Err(err).Msg("failed to cache repair report")
	}
	logger.Info().
		Int("fixed_shifts", result.FixedShifts).
		Int("fixed_invoices", result.FixedInvoices).
		Int("removed_duplicates", result.RemovedDuplicates).
		Bool("persisted", result.Persisted).
		Msg("repair finished")
	return result, nil
}

// Reset overwrites the store with the default document. It always saves.
func (s *Service) Reset(ctx context.Context) (domain.Document, domain.ResetResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	result := domain.ResetResult{RunID: xid.New("reset"), ResetAt: now, Keys: reset.Keys()}
	if s.opts.AdminPassword == "" {
		return domain.Document{}, result, ErrResetNotConfigured
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(s.opts.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return domain.Document{}, result, fmt.Errorf("hash admin password: %w", err)
	}

	doc := reset.Document(now, xid.New("user"), string(hash))
	if err := s.store.Save(ctx, doc); err != nil {
		if !errors.Is(err, store.ErrPersistence) {
			err = fmt.Errorf("%w: %w", store.ErrPersistence, err)
		}
		s.metrics.pass(opReset, "persistence_error", s.now().Sub(now).Seconds())
		s.log.Error().Err(err).Str("run_id", result.RunID).Msg("reset could not be saved")
		return domain.Document{}, result, err
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}
	s.metrics.pass(opReset, "reset", s.now().Sub(now).Seconds())
	s.log.Warn().
		Str("run_id", result.RunID).
		Str("actor", actor.Username).
		Strs("keys", result.Keys).
		Msg("document reset to defaults")
	return doc, result, nil
}

// LastReport returns the most recent successful repair, if still cached.
func (s *Service) LastReport(ctx context.Context) (domain.RepairResult, bool, error) {
	report, ok, err := s.reports.Get(ctx, cache.LastRepairKey)
	if err != nil || !ok {
		return domain.RepairResult{}, false, err
	}
	return *report, true, nil
}

// ListUsers reads the users collection for authentication. Records that do
// not decode are skipped.
func (s *Service) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	doc, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	raw, ok := doc.Extra[domain.KeyUsers]
	if !ok {
		return nil, nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(domain.UnwrapJSON(raw), &records); err != nil {
		s.log.Warn().Err(err).Msg("users collection is not a JSON array")
		return nil, nil
	}
	users := make([]domain.UserAccount, 0, len(records))
	for i, rec := range records {
		var user domain.UserAccount
		if err := json.Unmarshal(rec, &user); err != nil || user.Username == "" {
			s.log.Warn().Int("index", i).Msg("skipping unreadable user record")
			continue
		}
		users = append(users, user)
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *Service) logFindings(operation string, violations []domain.Violation, failures []domain.ParseFailure) {
	for _, f := range failures {
		s.log.Warn().
			Str("operation", operation).
			Str("key", f.Key).
			Int("index", f.Index).
			Str("reason", f.Reason).
			Msg("parse failure")
	}
	for _, v := range violations {
		event := s.log.Info()
		if v.Advisory {
			event = s.log.Warn()
		}
		event.
			Str("operation", operation).
			Str("rule", v.Rule).
			Str("entity", v.Entity).
			Str("id", v.ID).
			Str("action", v.Action).
			Msg(v.Message)
	}
}

func outcome(ok bool, yes string, no string) string {
	if ok {
		return yes
	}
	return no
}
