package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"land-registry/verification-portal/verification-portal-backend/internal/apperr"
	"land-registry/verification-portal/verification-portal-backend/internal/auth"
	"land-registry/verification-portal/verification-portal-backend/internal/land"
	"land-registry/verification-portal/verification-portal-backend/internal/notifications"
	"land-registry/verification-portal/verification-portal-backend/internal/payments"
	"land-registry/verification-portal/verification-portal-backend/internal/scoring"
	"land-registry/verification-portal/verification-portal-backend/pkg/clock"
	"land-registry/verification-portal/verification-portal-backend/pkg/workflows"
)

// saveAttempts bounds the optimistic-lock retry loop per operation.
const saveAttempts = 3

// scoreProgressThreshold is the minimum step completion percentage
// before an explicit ComputeScore call is accepted.
const scoreProgressThreshold = 60.0

// systemActor stamps audit entries produced by the engine itself (auto
// progression, SLA sweep).
var systemActor = uuid.Nil

// CreateRequest carries everything needed to open a verification.
type CreateRequest struct {
	LandID        string
	RequestedBy   uuid.UUID
	RequestType   RequestType
	Purpose       Purpose
	Urgency       Urgency
	Scope         *Scope
	ClientDetails ClientDetails
}

// PaymentRequest is one payment against the ledger.
type PaymentRequest struct {
	Amount    int64
	Method    payments.Method
	Reference string
}

// Service exposes the boundary operations of the verification engine.
type Service interface {
	CreateVerification(ctx context.Context, req CreateRequest) (*Verification, error)
	GetVerification(ctx context.Context, verificationID string, actor auth.Principal) (*Verification, error)
	ListMyVerifications(ctx context.Context, actor auth.Principal) ([]Verification, error)

	RecordPayment(ctx context.Context, verificationID string, req PaymentRequest, actor auth.Principal) (*payments.Ledger, error)
	RefundPayment(ctx context.Context, verificationID string, amount int64, reason string, actor auth.Principal) (*payments.Ledger, error)
	WaivePayment(ctx context.Context, verificationID string, reason string, actor auth.Principal) (*payments.Ledger, error)

	AssignOfficer(ctx context.Context, verificationID string, step StepName, officerID uuid.UUID, actor auth.Principal) (*Step, error)
	CompleteStep(ctx context.Context, verificationID string, step StepName, notes string, deliverables []string, actor auth.Principal) (*Step, error)
	SkipStep(ctx context.Context, verificationID string, step StepName, reason string, actor auth.Principal) (*Step, error)
	UpdateStatus(ctx context.Context, verificationID string, newStatus Status, notes string, actor auth.Principal) (*Verification, error)

	ComputeScore(ctx context.Context, verificationID string, actor auth.Principal) (*scoring.Results, error)
	ChangeScope(ctx context.Context, verificationID string, scope Scope, actor auth.Principal) (*Verification, error)

	// SweepOverdue flags in-flight verifications past their expected
	// completion date. Observation only; no status transition.
	SweepOverdue(ctx context.Context) (int, error)
}

type service struct {
	repo   Repository
	lands  land.Lookup
	scorer *scoring.Engine
	sm     *workflows.StateMachine
	clock  clock.Clock
	logger *zap.Logger
}

// NewService wires the verification engine.
func NewService(repo Repository, lands land.Lookup, scorer *scoring.Engine, clk clock.Clock, logger *zap.Logger) Service {
	return &service{
		repo:   repo,
		lands:  lands,
		scorer: scorer,
		sm:     workflows.NewStateMachine(),
		clock:  clk,
		logger: logger,
	}
}

func (s *service) CreateVerification(ctx context.Context, req CreateRequest) (*Verification, error) {
	if !ValidRequestType(req.RequestType) {
		return nil, fmt.Errorf("request type %q: %w", req.RequestType, apperr.ErrInvalidArgument)
	}
	if !ValidPurpose(req.Purpose) {
		return nil, fmt.Errorf("purpose %q: %w", req.Purpose, apperr.ErrInvalidArgument)
	}
	if !ValidUrgency(req.Urgency) {
		return nil, fmt.Errorf("urgency %q: %w", req.Urgency, apperr.ErrInvalidArgument)
	}

	scope := DefaultScope()
	if req.Scope != nil {
		if req.Scope.Empty() {
			return nil, fmt.Errorf("scope selects no activity: %w", apperr.ErrInvalidScope)
		}
		scope = *req.Scope
	}

	facts, err := s.lands.Get(ctx, req.LandID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	v := &Verification{
		VerificationID:  newReference("VERIFY", now),
		ReferenceNumber: newReference("VER-REF", now),
		LandID:          req.LandID,
		RequestedBy:     req.RequestedBy,
		RequestType:     req.RequestType,
		Purpose:         req.Purpose,
		Urgency:         req.Urgency,
		Status:          StatusPaymentPending,
		ClientDetails:   datatypes.NewJSONType(req.ClientDetails),
		Scope:           datatypes.NewJSONType(scope),
		Payment:         datatypes.NewJSONType(payments.NewLedger(string(req.Urgency))),
		Steps:           datatypes.NewJSONType(InitializeSteps(scope)),
		Timeline: datatypes.NewJSONType(Timeline{
			RequestDate: now,
			CurrentSLA:  SLAHours(req.Urgency),
		}),
		Ownership: datatypes.NewJSONType(scoring.OwnershipDetails{
			CurrentOwner:    facts.CurrentOwner,
			OwnerRegistered: facts.OwnerRegistered,
		}),
		Encumbrances: datatypes.NewJSONType(scoring.Encumbrances{
			HasEncumbrances: facts.HasEncumbrances,
		}),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	entry := v.newAuditEntry("verification_requested", req.RequestedBy, now, map[string]interface{}{
		"land_id":      req.LandID,
		"request_type": req.RequestType,
		"urgency":      req.Urgency,
		"total_amount": v.Payment.Data().TotalAmount,
	})
	intent := s.newIntent(v, notifications.EventVerificationCreated, map[string]interface{}{
		"verification_id":  v.VerificationID,
		"reference_number": v.ReferenceNumber,
		"total_amount":     v.Payment.Data().TotalAmount,
	})

	if err := s.repo.Create(ctx, v, []AuditEntry{entry}, []notifications.Intent{intent}); err != nil {
		return nil, err
	}
	s.logger.Info("Verification requested",
		zap.String("verification_id", v.VerificationID),
		zap.String("land_id", v.LandID),
		zap.String("urgency", string(v.Urgency)))
	return v, nil
}

func (s *service) GetVerification(ctx context.Context, verificationID string, actor auth.Principal) (*Verification, error) {
	v, err := s.repo.GetByID(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	if v.RequestedBy != actor.ID && !actor.Elevated() {
		return nil, fmt.Errorf("verification %s: %w", verificationID, apperr.ErrForbidden)
	}
	return v, nil
}

func (s *service) ListMyVerifications(ctx context.Context, actor auth.Principal) ([]Verification, error) {
	return s.repo.ListByRequester(ctx, actor.ID)
}

func (s *service) RecordPayment(ctx context.Context, verificationID string, req PaymentRequest, actor auth.Principal) (*payments.Ledger, error) {
	if !payments.ValidMethod(req.Method) {
		return nil, fmt.Errorf("payment method %q: %w", req.Method, apperr.ErrInvalidArgument)
	}

	var ledger payments.Ledger
	_, err := s.mutate(ctx, verificationID, func(v *Verification, now time.Time) ([]AuditEntry, []notifications.Intent, error) {
		l := v.Payment.Data()
		settled, err := l.Record(req.Amount, req.Method, req.Reference, now)
		if err != nil {
			return nil, nil, err
		}
		v.setLedger(l)
		ledger = l

		entries := []AuditEntry{v.newAuditEntry("payment_recorded", actor.ID, now, map[string]interface{}{
			"amount":    req.Amount,
			"method":    req.Method,
			"reference": req.Reference,
			"status":    l.Status,
		})}
		intents := []notifications.Intent{s.newIntent(v, notifications.EventPaymentRecorded, map[string]interface{}{
			"verification_id": v.VerificationID,
			"amount":          req.Amount,
			"payment_status":  l.Status,
		})}

		if settled && v.Status == StatusPaymentPending {
			v.applyStatus(StatusInProgress, now)
			v.StartSLAClock(now)
			entries = append(entries, v.newAuditEntry("status_changed", systemActor, now, map[string]interface{}{
				"previous_status": StatusPaymentPending,
				"new_status":      StatusInProgress,
				"reason":          "payment settled",
			}))
			intents = append(intents, s.newIntent(v, notifications.EventStatusChanged, map[string]interface{}{
				"verification_id": v.VerificationID,
				"status":          StatusInProgress,
			}))
		}
		return entries, intents, nil
	})
	if err != nil {
		return nil, err
	}
	return &ledger, nil
}

func (s *service) RefundPayment(ctx context.Context, verificationID string, amount int64, reason string, actor auth.Principal) (*payments.Ledger, error) {
	var ledger payments.Ledger
	_, err := s.mutate(ctx, verificationID, func(v *Verification, now time.Time) ([]AuditEntry, []notifications.Intent, error) {
		l := v.Payment.Data()
		if err := l.Refund(amount, reason, now); err != nil {
			return nil, nil, err
		}
		v.setLedger(l)
		ledger = l

		entries := []AuditEntry{v.newAuditEntry("payment_refunded", actor.ID, now, map[string]interface{}{
			"amount": amount,
			"reason": reason,
		})}
		intents := []notifications.Intent{s.newIntent(v, notifications.EventPaymentRefunded, map[string]interface{}{
			"verification_id": v.VerificationID,
			"amount":          amount,
		})}
		return entries, intents, nil
	})
	if err != nil {
		return nil, err
	}
	return &ledger, nil
}

func (s *service) WaivePayment(ctx context.Context, verificationID string, reason string, actor auth.Principal) (*payments.Ledger, error) {
	var ledger payments.Ledger
	_, err := s.mutate(ctx, verificationID, func(v *Verification, now time.Time) ([]AuditEntry, []notifications.Intent, error) {
		l := v.Payment.Data()
		if err := l.Waive(reason); err != nil {
			return nil, nil, err
		}
		v.setLedger(l)
		ledger = l

		entries := []AuditEntry{v.newAuditEntry("payment_waived", actor.ID, now, map[string]interface{}{
			"reason": reason,
		})}
		var intents []notifications.Intent

		// Waived fees unblock work immediately.
		if v.Status == StatusPaymentPending {
			v.applyStatus(StatusInProgress, now)
			v.StartSLAClock(now)
			entries = append(entries, v.newAuditEntry("status_changed", systemActor, now, map[string]interface{}{
				"previous_status": StatusPaymentPending,
				"new_status":      StatusInProgress,
				"reason":          "fee waived",
			}))
			intents = append(intents, s.newIntent(v, notifications.EventStatusChanged, map[string]interface{}{
				"verification_id": v.VerificationID,
				"status":          StatusInProgress,
			}))
		}
		return entries, intents, nil
	})
	if err != nil {
		return nil, err
	}
	return &ledger, nil
}

func (s *service) AssignOfficer(ctx context.Context, verificationID string, step StepName, officerID uuid.UUID, actor auth.Principal) (*Step, error) {
	if !ValidStepName(step) {
		return nil, fmt.Errorf("step %q: %w", step, apperr.ErrNotFound)
	}
	var result Step
	_, err := s.mutate(ctx, verificationID, func(v *Verification, now time.Time) ([]AuditEntry, []notifications.Intent, error) {
		if err := v.workable(); err != nil {
			return nil, nil, err
		}
		st, err := v.AssignOfficer(step, officerID, now)
		if err != nil {
			return nil, nil, err
		}
		result = st

		entries := []AuditEntry{v.newAuditEntry("officer_assigned", actor.ID, now, map[string]interface{}{
			"step":       step,
			"officer_id": officerID,
		})}
		return entries, nil, nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) CompleteStep(ctx context.Context, verificationID string, step StepName, notes string, deliverables []string, actor auth.Principal) (*Step, error) {
	if !ValidStepName(step) {
		return nil, fmt.Errorf("step %q: %w", step, apperr.ErrNotFound)
	}
	var result Step
	_, err := s.mutate(ctx, verificationID, func(v *Verification, now time.Time) ([]AuditEntry, []notifications.Intent, error) {
		if err := v.workable(); err != nil {
			return nil, nil, err
		}
		st, err := v.CompleteStep(step, notes, deliverables, now)
		if err != nil {
			return nil, nil, err
		}
		result = st

		entries := []AuditEntry{v.newAuditEntry("step_completed", actor.ID, now, map[string]interface{}{
			"step":         step,
			"notes":        notes,
			"deliverables": deliverables,
		})}
		var intents []notifications.Intent

		previous := v.Status
		if newStatus, changed := v.AutoProgressStatus(now); changed {
			entries = append(entries, v.newAuditEntry("status_changed", systemActor, now, map[string]interface{}{
				"previous_status": previous,
				"new_status":      newStatus,
				"reason":          "auto progression",
			}))
			intents = append(intents, s.newIntent(v, notifications.EventStatusChanged, map[string]interface{}{
				"verification_id": v.VerificationID,
				"status":          newStatus,
			}))
			if newStatus == StatusCompleted {
				e, i := s.finalize(v, actor.ID, now)
				entries = append(entries, e...)
				intents = append(intents, i...)
			}
		}
		return entries, intents, nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) SkipStep(ctx context.Context, verificationID string, step StepName, reason string, actor auth.Principal) (*Step, error) {
	if !ValidStepName(step) {
		return nil, fmt.Errorf("step %q: %w", step, apperr.ErrNotFound)
	}
	var result Step
	_, err := s.mutate(ctx, verificationID, func(v *Verification, now time.Time) ([]AuditEntry, []notifications.Intent, error) {
		if err := v.workable(); err != nil {
			return nil, nil, err
		}
		st, err := v.SkipStep(step, reason)
		if err != nil {
			return nil, nil, err
		}
		result = st

		entries := []AuditEntry{v.newAuditEntry("step_skipped", actor.ID, now, map[string]interface{}{
			"step":   step,
			"reason": reason,
		})}
		return entries, nil, nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) UpdateStatus(ctx context.Context, verificationID string, newStatus Status, notes string, actor auth.Principal) (*Verification, error) {
	if !s.sm.IsKnown(string(newStatus)) {
		return nil, fmt.Errorf("status %q: %w", newStatus, apperr.ErrInvalidTransition)
	}
	return s.mutate(ctx, verificationID, func(v *Verification, now time.Time) ([]AuditEntry, []notifications.Intent, error) {
		if !s.sm.CanTransition(string(v.Status), string(newStatus)) {
			return nil, nil, fmt.Errorf("%s -> %s: %w", v.Status, newStatus, apperr.ErrInvalidTransition)
		}
		previous := v.Status
		v.applyStatus(newStatus, now)

		entries := []AuditEntry{v.newAuditEntry("status_changed", actor.ID, now, map[string]interface{}{
			"previous_status": previous,
			"new_status":      newStatus,
			"notes":           notes,
		})}
		intents := []notifications.Intent{s.newIntent(v, notifications.EventStatusChanged, map[string]interface{}{
			"verification_id": v.VerificationID,
			"status":          newStatus,
		})}
		if newStatus == StatusCompleted {
			e, i := s.finalize(v, actor.ID, now)
			entries = append(entries, e...)
			intents = append(intents, i...)
		}
		return entries, intents, nil
	})
}

func (s *service) ComputeScore(ctx context.Context, verificationID string, actor auth.Principal) (*scoring.Results, error) {
	var results *scoring.Results
	_, err := s.mutate(ctx, verificationID, func(v *Verification, now time.Time) ([]AuditEntry, []notifications.Intent, error) {
		if v.Status != StatusCompleted && v.CompletionProgress() < scoreProgressThreshold {
			return nil, nil, fmt.Errorf("only %.0f%% of steps completed: %w", v.CompletionProgress(), apperr.ErrPreconditionFailed)
		}
		r := s.scorer.Compute(v.ScoringInput())
		results = &r
		v.setResults(&r)

		entries := []AuditEntry{v.newAuditEntry("score_computed", actor.ID, now, map[string]interface{}{
			"verification_score": r.VerificationScore,
			"overall_status":     r.OverallStatus,
		})}
		return entries, nil, nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *service) ChangeScope(ctx context.Context, verificationID string, scope Scope, actor auth.Principal) (*Verification, error) {
	if scope.Empty() {
		return nil, fmt.Errorf("scope selects no activity: %w", apperr.ErrInvalidScope)
	}
	return s.mutate(ctx, verificationID, func(v *Verification, now time.Time) ([]AuditEntry, []notifications.Intent, error) {
		if v.IsTerminal() {
			return nil, nil, fmt.Errorf("verification is %s: %w", v.Status, apperr.ErrInvalidState)
		}

		// Rebuild the step list for the new scope, preserving any step
		// already started or finished.
		existing := v.Steps.Data()
		rebuilt := InitializeSteps(scope)
		merged := make([]Step, 0, len(rebuilt))
		for _, st := range rebuilt {
			if i := findStep(existing, st.Name); i >= 0 && existing[i].Status != StepPending {
				merged = append(merged, existing[i])
			} else {
				merged = append(merged, st)
			}
		}
		for _, st := range existing {
			if findStep(merged, st.Name) < 0 && st.Status != StepPending {
				merged = append(merged, st)
			}
		}
		v.Scope = datatypes.NewJSONType(scope)
		v.setSteps(merged)

		entries := []AuditEntry{v.newAuditEntry("scope_changed", actor.ID, now, map[string]interface{}{
			"scope": scope,
		})}
		return entries, nil, nil
	})
}

func (s *service) SweepOverdue(ctx context.Context) (int, error) {
	candidates, err := s.repo.ListOpenWithDeadline(ctx)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	flagged := 0
	for i := range candidates {
		v := &candidates[i]
		tl := v.Timeline.Data()
		if !v.IsOverdue(now) || tl.SLACompliant != nil {
			continue
		}
		compliant := false
		tl.SLACompliant = &compliant
		v.setTimeline(tl)

		entry := v.newAuditEntry("sla_breached", systemActor, now, map[string]interface{}{
			"expected_completion_date": tl.ExpectedCompletionDate,
		})
		intent := s.newIntent(v, notifications.EventVerificationOverdue, map[string]interface{}{
			"verification_id":  v.VerificationID,
			"reference_number": v.ReferenceNumber,
			"status":           v.Status,
		})
		err := s.repo.Save(ctx, v, []AuditEntry{entry}, []notifications.Intent{intent})
		if errors.Is(err, apperr.ErrVersionConflict) {
			// A writer beat the sweep; the next pass re-evaluates.
			continue
		}
		if err != nil {
			return flagged, err
		}
		flagged++
	}
	return flagged, nil
}

// workable rejects step activity on verifications that are finished or
// still waiting on the fee.
func (v *Verification) workable() error {
	if v.IsTerminal() {
		return fmt.Errorf("verification is %s: %w", v.Status, apperr.ErrInvalidState)
	}
	if v.Status == StatusPaymentPending {
		return fmt.Errorf("fee outstanding on %s: %w", v.VerificationID, apperr.ErrPaymentRequired)
	}
	return nil
}

// finalize runs when a verification reaches completed: score if not
// already scored, record the report and certificate metadata, and emit
// the completion intent.
func (s *service) finalize(v *Verification, actor uuid.UUID, now time.Time) ([]AuditEntry, []notifications.Intent) {
	var entries []AuditEntry

	results := v.Results.Data()
	if results == nil {
		r := s.scorer.Compute(v.ScoringInput())
		results = &r
		v.setResults(results)
		entries = append(entries, v.newAuditEntry("score_computed", systemActor, now, map[string]interface{}{
			"verification_score": r.VerificationScore,
			"overall_status":     r.OverallStatus,
		}))
	}

	report := &ReportMeta{
		GeneratedAt: now,
		GeneratedBy: actor,
	}
	if results.OverallStatus == scoring.StatusVerified {
		report.CertificateIssued = true
		report.CertificateNumber = fmt.Sprintf("VC-%d", now.UnixMilli())
		validUntil := now.AddDate(1, 0, 0)
		report.CertificateValidUntil = &validUntil
	}
	v.setReport(report)
	entries = append(entries, v.newAuditEntry("report_generated", systemActor, now, map[string]interface{}{
		"certificate_issued": report.CertificateIssued,
	}))

	intents := []notifications.Intent{s.newIntent(v, notifications.EventVerificationCompleted, map[string]interface{}{
		"verification_id":    v.VerificationID,
		"reference_number":   v.ReferenceNumber,
		"overall_status":     results.OverallStatus,
		"verification_score": results.VerificationScore,
		"certificate_issued": report.CertificateIssued,
	})}
	return entries, intents
}

// mutate loads the aggregate, applies fn and saves with the entries and
// intents fn produced, retrying on optimistic-lock conflicts. A failed
// fn leaves the persisted state untouched.
func (s *service) mutate(ctx context.Context, verificationID string, fn func(v *Verification, now time.Time) ([]AuditEntry, []notifications.Intent, error)) (*Verification, error) {
	var lastErr error
	for attempt := 0; attempt < saveAttempts; attempt++ {
		v, err := s.repo.GetByID(ctx, verificationID)
		if err != nil {
			return nil, err
		}
		now := s.clock.Now()
		entries, intents, err := fn(v, now)
		if err != nil {
			return nil, err
		}
		v.UpdatedAt = now

		err = s.repo.Save(ctx, v, entries, intents)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, apperr.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
		s.logger.Debug("Retrying after version conflict",
			zap.String("verification_id", verificationID),
			zap.Int("attempt", attempt+1))
	}
	return nil, lastErr
}

// newAuditEntry issues the next audit record for this aggregate.
func (v *Verification) newAuditEntry(action string, actor uuid.UUID, ts time.Time, details map[string]interface{}) AuditEntry {
	v.AuditSeq++
	payload, _ := json.Marshal(details)
	return AuditEntry{
		VerificationID: v.VerificationID,
		Seq:            v.AuditSeq,
		Action:         action,
		PerformedBy:    actor,
		Timestamp:      ts,
		Details:        payload,
	}
}

func (s *service) newIntent(v *Verification, kind notifications.EventKind, payload map[string]interface{}) notifications.Intent {
	body, _ := json.Marshal(payload)
	return notifications.Intent{
		VerificationID: v.VerificationID,
		Kind:           kind,
		Payload:        body,
		Status:         notifications.IntentPending,
		CreatedAt:      s.clock.Now(),
	}
}

// newReference builds a human-readable reference like
// VERIFY-1756600000000-3F2A9C.
func newReference(prefix string, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("%s-%d-%s", prefix, now.UnixMilli(), suffix)
}
