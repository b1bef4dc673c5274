package verification

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"land-registry/verification-portal/verification-portal-backend/internal/apperr"
)

// Estimated step durations in hours, used for client-facing time
// estimates only.
var stepDurations = map[StepName]float64{
	StepDocumentCollection: 4,
	StepDocumentReview:     8,
	StepFieldVerification:  24,
	StepDataAnalysis:       8,
	StepReportGeneration:   4,
	StepQualityCheck:       2,
}

// InitializeSteps builds the step list for a scope. Every step starts
// pending with no assignee. Steps whose activities the scope excludes
// are not created at all.
func InitializeSteps(scope Scope) []Step {
	var names []StepName
	if scope.OwnershipVerification || scope.TitleDocumentCheck || scope.EncumbranceSearch {
		names = append(names, StepDocumentCollection, StepDocumentReview)
	}
	if scope.PhysicalInspection {
		names = append(names, StepFieldVerification)
	}
	if scope.EncumbranceSearch || scope.RiskAssessment || scope.MarketValuation || scope.LegalComplianceCheck {
		names = append(names, StepDataAnalysis)
	}
	names = append(names, StepReportGeneration, StepQualityCheck)

	steps := make([]Step, 0, len(names))
	for _, name := range names {
		steps = append(steps, Step{
			Name:              name,
			Status:            StepPending,
			EstimatedDuration: stepDurations[name],
		})
	}
	return steps
}

func findStep(steps []Step, name StepName) int {
	for i := range steps {
		if steps[i].Name == name {
			return i
		}
	}
	return -1
}

// AssignOfficer puts an officer on a step, starting it if still pending.
// Completed and skipped steps refuse reassignment.
func (v *Verification) AssignOfficer(name StepName, officerID uuid.UUID, now time.Time) (Step, error) {
	steps := v.Steps.Data()
	i := findStep(steps, name)
	if i < 0 {
		return Step{}, fmt.Errorf("step %s: %w", name, apperr.ErrNotFound)
	}
	if steps[i].Status == StepCompleted || steps[i].Status == StepSkipped {
		return Step{}, fmt.Errorf("step %s is %s: %w", name, steps[i].Status, apperr.ErrInvalidState)
	}

	steps[i].AssignedTo = &officerID
	if steps[i].Status == StepPending {
		steps[i].Status = StepInProgress
		started := now
		steps[i].StartedAt = &started
	}
	v.setSteps(steps)
	return steps[i], nil
}

// CompleteStep finishes an in-progress step, deriving the actual
// duration from its timestamps.
func (v *Verification) CompleteStep(name StepName, notes string, deliverables []string, now time.Time) (Step, error) {
	steps := v.Steps.Data()
	i := findStep(steps, name)
	if i < 0 {
		return Step{}, fmt.Errorf("step %s: %w", name, apperr.ErrNotFound)
	}
	if steps[i].Status != StepInProgress {
		return Step{}, fmt.Errorf("step %s is %s: %w", name, steps[i].Status, apperr.ErrInvalidState)
	}

	completed := now
	steps[i].Status = StepCompleted
	steps[i].CompletedAt = &completed
	steps[i].Notes = notes
	steps[i].Deliverables = deliverables
	if steps[i].StartedAt != nil {
		hours := completed.Sub(*steps[i].StartedAt).Hours()
		steps[i].ActualDuration = &hours
	}
	v.setSteps(steps)
	return steps[i], nil
}

// SkipStep marks a still-pending step skipped. Admin-only escape hatch
// for steps that turned out not to apply.
func (v *Verification) SkipStep(name StepName, reason string) (Step, error) {
	steps := v.Steps.Data()
	i := findStep(steps, name)
	if i < 0 {
		return Step{}, fmt.Errorf("step %s: %w", name, apperr.ErrNotFound)
	}
	if steps[i].Status != StepPending {
		return Step{}, fmt.Errorf("step %s is %s: %w", name, steps[i].Status, apperr.ErrInvalidState)
	}
	steps[i].Status = StepSkipped
	steps[i].SkipReason = reason
	v.setSteps(steps)
	return steps[i], nil
}

// AutoProgressStatus advances the workflow status from the step list
// after a step completes. This is the percentage-threshold heuristic:
// thresholds use strict comparison and apply regardless of which steps
// completed, and the two partial thresholds fire only from one specific
// current status each. It reports the new status and whether anything
// changed.
func (v *Verification) AutoProgressStatus(now time.Time) (Status, bool) {
	steps := v.Steps.Data()
	total := len(steps)
	if total == 0 {
		return v.Status, false
	}
	completed, skipped := 0, 0
	for _, s := range steps {
		switch s.Status {
		case StepCompleted:
			completed++
		case StepSkipped:
			skipped++
		}
	}

	switch {
	case completed > 0 && completed+skipped == total && v.Status != StatusCompleted:
		v.applyStatus(StatusCompleted, now)
		return StatusCompleted, true
	case float64(completed) > float64(total)*0.8 && v.Status == StatusInProgress:
		v.applyStatus(StatusQualityReview, now)
		return StatusQualityReview, true
	case float64(completed) > float64(total)*0.6 && v.Status == StatusFieldWork:
		v.applyStatus(StatusAnalysis, now)
		return StatusAnalysis, true
	}
	return v.Status, false
}

// applyStatus sets the status and stamps the matching timeline field.
func (v *Verification) applyStatus(newStatus Status, now time.Time) {
	v.Status = newStatus
	tl := v.Timeline.Data()
	switch newStatus {
	case StatusInProgress:
		tl.WorkStartedDate = &now
	case StatusFieldWork:
		tl.FieldWorkDate = &now
	case StatusAnalysis:
		tl.DraftReportDate = &now
	case StatusQualityReview:
		tl.QualityCheckDate = &now
	case StatusCompleted:
		v.CompletedAt = &now
		tl.ActualCompletionDate = &now
		compliant := v.ProcessingHours(now) <= float64(tl.CurrentSLA)
		tl.SLACompliant = &compliant
	case StatusCancelled:
		tl.ActualCompletionDate = &now
	}
	v.setTimeline(tl)
}

// StartSLAClock stamps the expected completion date from the urgency
// tier. Called when payment settles (or the fee is waived) and work can
// begin.
func (v *Verification) StartSLAClock(now time.Time) {
	tl := v.Timeline.Data()
	tl.CurrentSLA = SLAHours(v.Urgency)
	expected := now.Add(time.Duration(tl.CurrentSLA) * time.Hour)
	tl.ExpectedCompletionDate = &expected
	v.setTimeline(tl)
}
