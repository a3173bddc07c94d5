// Package services – IdentifierEnhancer
//
// This file implements sequential patient identifier generation. The
// enhancer rewrites a patient's stored identifier into the form
// "<prefix><YY>-<grouped digits>" where YY is the current two-digit year
// and the digits are the running sequence value, hyphenated every three
// digits from the right (e.g. "PD200-25-000-001"). When the calendar year
// advances past the last year an identifier was minted for, the sequence
// restarts at a fixed reset value.
//
// The sequence-counter reset is deliberately two-phase: Enhance only stages
// the reset in memory, and ConfirmSequenceCommit persists it to the backing
// identifier source strictly after the caller knows the patient save
// succeeded. A failed save therefore never advances the shared counter for
// an identifier that was never stored.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/Paradgym/openmrs-module-paradygm/internal/domain"
	"github.com/Paradgym/openmrs-module-paradygm/internal/repo"
)

// ResetSequenceValue is the numeric suffix assigned to the first identifier
// minted after a year rollover.
const ResetSequenceValue int64 = 1

// IdentifierEnhancer generates formatted sequential patient identifiers
// from a configured identifier source.
//
// Rollover state ("last recorded year" and the staged-reset flag) is shared
// across all concurrent callers and keyed by source UUID, so a deployment
// that grows a second prefix cannot cross-contaminate rollover decisions.
// Both the detect-and-stage step and the confirm-and-persist step run under
// the same mutex: two patient registrations racing across a year boundary
// observe exactly one rollover between them, and a confirm from one
// operation cannot clear a flag another operation just set.
type IdentifierEnhancer struct {
	// DB is the database handle used to read the identifier source and
	// persist the confirmed sequence value.
	DB *gorm.DB

	// SourceID is the fixed UUID of the identifier source record that
	// supplies the prefix and backing sequence for this deployment.
	SourceID string

	// Now returns the current time; nil means time.Now. Injected by tests
	// to pin the year.
	Now func() time.Time

	mu               sync.Mutex
	lastRecordedYear map[string]int
	resetPending     map[string]bool
}

// Enhance rewrites patient's identifier in place.
//
// Soft failures (logged, identifier left untouched, nil returned):
//   - the patient has no identifier to enhance;
//   - the configured identifier source does not exist.
//
// Fatal failure: the stored identifier, after stripping the source prefix,
// does not parse as an integer. ErrInvalidIdentifierFormat is returned
// and the triggering save must not proceed.
//
// Exactly one rollover decision is made per call. On rollover the numeric
// suffix is forced to ResetSequenceValue, the recorded year advances
// immediately, and a pending-reset flag is staged for
// ConfirmSequenceCommit. The eventual counter persistence is not
// transactional with this update; see ConfirmSequenceCommit.
func (e *IdentifierEnhancer) Enhance(ctx context.Context, patient *domain.Patient) error {
	if patient == nil || patient.Identifier == nil {
		log.Error().Msg("patient has no identifier to enhance")
		return nil
	}

	src, err := repo.GetIdentifierSource(ctx, e.DB, e.SourceID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Error().Str("source", e.SourceID).
				Msg("identifier source not found, skipping identifier enhancement")
			return nil
		}
		return err
	}

	suffix, err := parseSuffix(patient.Identifier.Identifier, src.Prefix)
	if err != nil {
		return err
	}

	year := e.now().Year() % 100

	e.mu.Lock()
	if e.lastRecordedYear == nil {
		e.lastRecordedYear = make(map[string]int)
		e.resetPending = make(map[string]bool)
	}
	last, seen := e.lastRecordedYear[src.UUID]
	if !seen {
		// First generation since startup establishes the baseline year.
		last = year
		e.lastRecordedYear[src.UUID] = year
	}
	if last != year {
		log.Warn().Int("last_recorded_year", last).Int("current_year", year).
			Msg("year changed, resetting identifier sequence")
		suffix = ResetSequenceValue
		e.lastRecordedYear[src.UUID] = year
		e.resetPending[src.UUID] = true
	} else {
		e.resetPending[src.UUID] = false
	}
	e.mu.Unlock()

	value := suffix + int64(year)*1_000_000
	patient.Identifier.Identifier = src.Prefix + groupThousands(strconv.FormatInt(value, 10))
	return nil
}

// SequenceResetPending reports whether a rollover has been staged and not
// yet confirmed for the configured source.
func (e *IdentifierEnhancer) SequenceResetPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resetPending[e.SourceID]
}

// ConfirmSequenceCommit persists the staged sequence reset, if any, writing
// ResetSequenceValue+1 to the backing counter. It must be invoked strictly
// after the dependent patient save has been confirmed successful.
//
// The write happens at most once per staged rollover: the pending flag is
// cleared on success, so a second call is a no-op. On persistence failure
// the flag stays set and the error is returned, leaving a retry possible.
// With no rollover staged the call does nothing and returns nil.
func (e *IdentifierEnhancer) ConfirmSequenceCommit(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.resetPending[e.SourceID] {
		return nil
	}

	src, err := repo.GetIdentifierSource(ctx, e.DB, e.SourceID)
	if err != nil {
		return err
	}
	if err := repo.SaveSequenceValue(ctx, e.DB, src, ResetSequenceValue+1); err != nil {
		return err
	}
	e.resetPending[e.SourceID] = false
	log.Warn().Str("source", src.UUID).Msg("identifier sequence reset committed")
	return nil
}

// SetLastRecordedYear overrides the recorded year for the configured
// source. It exists for deployment bootstrap and tests that need to force
// or suppress a rollover.
func (e *IdentifierEnhancer) SetLastRecordedYear(year int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastRecordedYear == nil {
		e.lastRecordedYear = make(map[string]int)
		e.resetPending = make(map[string]bool)
	}
	e.lastRecordedYear[e.SourceID] = year
}

func (e *IdentifierEnhancer) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// parseSuffix extracts the numeric suffix following the first occurrence of
// prefix in id. An empty prefix means the whole identifier is the suffix.
func parseSuffix(id, prefix string) (int64, error) {
	rest := id
	if prefix != "" {
		i := strings.Index(id, prefix)
		if i < 0 {
			return 0, fmt.Errorf("%w: %q does not contain prefix %q", ErrInvalidIdentifierFormat, id, prefix)
		}
		rest = id[i+len(prefix):]
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIdentifierFormat, rest)
	}
	return n, nil
}

// groupThousands inserts a hyphen after every run of three digits counting
// from the least-significant end: "25000001" becomes "25-000-001".
func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head == 0 {
		head = 3
	}
	b.WriteString(digits[:head])
	for i := head; i < len(digits); i += 3 {
		b.WriteByte('-')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
