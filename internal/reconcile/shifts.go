package reconcile

import (
	"encoding/json"
	"fmt"
	"time"

	"posdoctor/internal/domain"
)

// ShiftReport describes one shift pass. Fixed counts status changes and
// pointer clears; advisory findings are listed but not counted.
type ShiftReport struct {
	Violations        []domain.Violation
	Fixed             int
	RemovedDuplicates int
	// PointerClearReason is set when the activeShift pointer was removed.
	PointerClearReason string
}

// Deduplicate keeps the first record for each id, in order, and returns the
// ids of the dropped records. Ids of different JSON types never match. Malformed records have no usable id and are
// always kept.
func Deduplicate(shifts []domain.Shift) ([]domain.Shift, []string) {
	if shifts == nil {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(shifts))
	kept := make([]domain.Shift, 0, len(shifts))
	var removed []string
	for _, shift := range shifts {
		if shift.Malformed() {
			kept = append(kept, shift)
			continue
		}
		key := shift.Key()
		if _, dup := seen[key]; dup {
			removed = append(removed, shift.ID)
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, shift)
	}
	return kept, removed
}

// NormalizeActivity enforces at most one active shift, corrects the survivor
// when it is contradictory or stale, and checks the activeShift pointer
// against the corrected collection.
func NormalizeActivity(shifts []domain.Shift, pointer json.RawMessage, now time.Time, opts Options) ([]domain.Shift, json.RawMessage, ShiftReport) {
	var report ShiftReport
	out := append([]domain.Shift(nil), shifts...)
	if shifts != nil && out == nil {
		out = []domain.Shift{}
	}
	stamp := domain.FormatTimestamp(now)

	var active []int
	for i := range out {
		if out[i].IsActive() {
			active = append(active, i)
		}
	}

	if len(active) > 1 {
		winner := latestStart(out, active)
		for _, i := range active {
			if i == winner {
				continue
			}
			out[i].Status = domain.ShiftStatusEnded
			if opts.StampEndTimeOnDemotion && !out[i].HasEndTime() {
				out[i].EndTime = stamp
			}
			report.add(domain.Violation{
				Rule:    domain.RuleMultipleActive,
				Entity:  domain.EntityShift,
				ID:      out[i].ID,
				Message: fmt.Sprintf("shift %s was active alongside %s, which started later", out[i].ID, out[winner].ID),
				Action:  domain.ActionEnded,
			})
		}
		active = []int{winner}
	}

	if len(active) == 1 {
		survivor := &out[active[0]]
		switch {
		case survivor.HasEndTime():
			survivor.Status = domain.ShiftStatusCompleted
			report.add(domain.Violation{
				Rule:    domain.RuleContradictoryEndTime,
				Entity:  domain.EntityShift,
				ID:      survivor.ID,
				Message: fmt.Sprintf("shift %s is active but has endTime %s", survivor.ID, survivor.EndTime),
				Action:  domain.ActionCompleted,
			})
		case isStale(*survivor, now, opts.staleAfter()):
			survivor.Status = domain.ShiftStatusEnded
			survivor.EndTime = stamp
			report.add(domain.Violation{
				Rule:    domain.RuleStaleActive,
				Entity:  domain.EntityShift,
				ID:      survivor.ID,
				Message: fmt.Sprintf("shift %s has been active since %s, longer than %s", survivor.ID, survivor.StartTime, opts.staleAfter()),
				Action:  domain.ActionEnded,
			})
		}
	}

	return out, checkPointer(out, pointer, opts, &report), report
}

// ReconcileShifts runs Deduplicate then NormalizeActivity and merges their
// findings into one report.
func ReconcileShifts(shifts []domain.Shift, pointer json.RawMessage, now time.Time, opts Options) ([]domain.Shift, json.RawMessage, ShiftReport) {
	deduped, removed := Deduplicate(shifts)
	var dupViolations []domain.Violation
	for _, id := range removed {
		dupViolations = append(dupViolations, domain.Violation{
			Rule:    domain.RuleDuplicateID,
			Entity:  domain.EntityShift,
			ID:      id,
			Message: fmt.Sprintf("duplicate shift %s dropped, first occurrence kept", id),
			Action:  domain.ActionRemoved,
		})
	}

	out, ptr, report := NormalizeActivity(deduped, pointer, now, opts)
	report.RemovedDuplicates = len(removed)
	report.Violations = append(dupViolations, report.Violations...)
	return out, ptr, report
}

func checkPointer(shifts []domain.Shift, pointer json.RawMessage, opts Options, report *ShiftReport) json.RawMessage {
	if pointer == nil {
		return nil
	}
	parsed, err := domain.ParseActivePointer(pointer)
	if err != nil {
		report.clearPointer("", domain.ReasonParseFailure, domain.RulePointerParse, err.Error())
		return nil
	}
	if parsed.Status != domain.ShiftStatusActive {
		report.clearPointer(parsed.ID, domain.ReasonNonActive, domain.RulePointerNotActive,
			fmt.Sprintf("active shift pointer has status %q", parsed.Status))
		return nil
	}

	target, ok := findShift(shifts, parsed.ID)
	if !ok || !target.IsTerminal() {
		return pointer
	}
	message := fmt.Sprintf("active shift pointer names shift %s, which is %s", parsed.ID, target.Status)
	if opts.ClearStalePointer {
		report.clearPointer(parsed.ID, "terminal shift", domain.RulePointerTerminalShift, message)
		return nil
	}
	report.Violations = append(report.Violations, domain.Violation{
		Rule:     domain.RulePointerTerminalShift,
		Entity:   domain.EntityActiveShift,
		ID:       parsed.ID,
		Message:  message,
		Action:   domain.ActionNone,
		Advisory: true,
	})
	return pointer
}

func (r *ShiftReport) add(v domain.Violation) {
	r.Violations = append(r.Violations, v)
	r.Fixed++
}

func (r *ShiftReport) clearPointer(id, reason, rule, detail string) {
	r.PointerClearReason = reason
	r.add(domain.Violation{
		Rule:    rule,
		Entity:  domain.EntityActiveShift,
		ID:      id,
		Message: fmt.Sprintf("active shift pointer cleared: %s (%s)", reason, detail),
		Action:  domain.ActionCleared,
	})
}

// latestStart picks the index with the latest start time. Ties keep the
// earlier record; unparseable start times lose to any parseable one.
func latestStart(shifts []domain.Shift, indexes []int) int {
	best := indexes[0]
	bestAt, bestOK := shifts[best].Started()
	for _, i := range indexes[1:] {
		at, ok := shifts[i].Started()
		if ok && (!bestOK || at.After(bestAt)) {
			best, bestAt, bestOK = i, at, ok
		}
	}
	return best
}

func isStale(shift domain.Shift, now time.Time, limit time.Duration) bool {
	started, ok := shift.Started()
	if !ok {
		return false
	}
	return now.Sub(started) > limit
}

func findShift(shifts []domain.Shift, id string) (domain.Shift, bool) {
	if id == "" {
		return domain.Shift{}, false
	}
	for _, shift := range shifts {
		if !shift.Malformed() && shift.ID == id {
			return shift, true
		}
	}
	return domain.Shift{}, false
}
