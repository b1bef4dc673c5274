package verification

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"land-registry/verification-portal/verification-portal-backend/internal/apperr"
	"land-registry/verification-portal/verification-portal-backend/internal/payments"
)

func fullScope() Scope {
	return Scope{
		OwnershipVerification: true,
		TitleDocumentCheck:    true,
		EncumbranceSearch:     true,
		PhysicalInspection:    true,
		MarketValuation:       true,
		LegalComplianceCheck:  true,
		RiskAssessment:        true,
	}
}

func newTestVerification(scope Scope, status Status, createdAt time.Time) *Verification {
	return &Verification{
		VerificationID: "VERIFY-TEST-1",
		LandID:         "LAND-001",
		RequestedBy:    uuid.New(),
		RequestType:    RequestDueDiligence,
		Purpose:        PurposePurchase,
		Urgency:        UrgencyStandard,
		Status:         status,
		Scope:          datatypes.NewJSONType(scope),
		Payment:        datatypes.NewJSONType(payments.NewLedger("standard")),
		Steps:          datatypes.NewJSONType(InitializeSteps(scope)),
		Timeline: datatypes.NewJSONType(Timeline{
			RequestDate: createdAt,
			CurrentSLA:  SLAHours(UrgencyStandard),
		}),
		Version:   1,
		CreatedAt: createdAt,
	}
}

func TestInitializeStepsFromScope(t *testing.T) {
	tests := []struct {
		name  string
		scope Scope
		want  []StepName
	}{
		{
			name:  "full scope",
			scope: fullScope(),
			want: []StepName{
				StepDocumentCollection, StepDocumentReview, StepFieldVerification,
				StepDataAnalysis, StepReportGeneration, StepQualityCheck,
			},
		},
		{
			name:  "default scope has no field work",
			scope: DefaultScope(),
			want: []StepName{
				StepDocumentCollection, StepDocumentReview,
				StepDataAnalysis, StepReportGeneration, StepQualityCheck,
			},
		},
		{
			name:  "physical inspection only",
			scope: Scope{PhysicalInspection: true},
			want:  []StepName{StepFieldVerification, StepReportGeneration, StepQualityCheck},
		},
		{
			name:  "market valuation only",
			scope: Scope{MarketValuation: true},
			want:  []StepName{StepDataAnalysis, StepReportGeneration, StepQualityCheck},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps := InitializeSteps(tt.scope)
			names := make([]StepName, len(steps))
			for i, s := range steps {
				names[i] = s.Name
				assert.Equal(t, StepPending, s.Status)
				assert.Nil(t, s.AssignedTo)
				assert.Greater(t, s.EstimatedDuration, 0.0)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestAssignOfficerStartsPendingStep(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	v := newTestVerification(fullScope(), StatusInProgress, now)
	officer := uuid.New()

	step, err := v.AssignOfficer(StepDocumentCollection, officer, now)
	require.NoError(t, err)
	assert.Equal(t, StepInProgress, step.Status)
	require.NotNil(t, step.AssignedTo)
	assert.Equal(t, officer, *step.AssignedTo)
	require.NotNil(t, step.StartedAt)
	assert.Equal(t, now, *step.StartedAt)

	// Reassignment on an in-progress step keeps it running.
	replacement := uuid.New()
	step, err = v.AssignOfficer(StepDocumentCollection, replacement, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StepInProgress, step.Status)
	assert.Equal(t, replacement, *step.AssignedTo)
	assert.Equal(t, now, *step.StartedAt)
}

func TestAssignOfficerUnknownAndFinishedSteps(t *testing.T) {
	now := time.Now()
	v := newTestVerification(DefaultScope(), StatusInProgress, now)
	officer := uuid.New()

	// field_verification is not in the default scope.
	_, err := v.AssignOfficer(StepFieldVerification, officer, now)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = v.AssignOfficer(StepDocumentCollection, officer, now)
	require.NoError(t, err)
	_, err = v.CompleteStep(StepDocumentCollection, "", nil, now.Add(time.Hour))
	require.NoError(t, err)

	_, err = v.AssignOfficer(StepDocumentCollection, officer, now)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestCompleteStepRequiresInProgress(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	v := newTestVerification(fullScope(), StatusInProgress, now)

	_, err := v.CompleteStep(StepDocumentReview, "", nil, now)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = v.AssignOfficer(StepDocumentReview, uuid.New(), now)
	require.NoError(t, err)

	step, err := v.CompleteStep(StepDocumentReview, "all documents checked", []string{"review_summary.pdf"}, now.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StepCompleted, step.Status)
	require.NotNil(t, step.CompletedAt)
	require.NotNil(t, step.ActualDuration)
	assert.InDelta(t, 3.0, *step.ActualDuration, 0.001)
	assert.Equal(t, []string{"review_summary.pdf"}, step.Deliverables)

	// Completed steps stay completed.
	_, err = v.CompleteStep(StepDocumentReview, "", nil, now)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestSkipStepOnlyPending(t *testing.T) {
	now := time.Now()
	v := newTestVerification(fullScope(), StatusInProgress, now)

	step, err := v.SkipStep(StepFieldVerification, "access denied by occupant")
	require.NoError(t, err)
	assert.Equal(t, StepSkipped, step.Status)
	assert.Equal(t, "access denied by occupant", step.SkipReason)

	_, err = v.SkipStep(StepFieldVerification, "again")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = v.AssignOfficer(StepDocumentCollection, uuid.New(), now)
	require.NoError(t, err)
	_, err = v.SkipStep(StepDocumentCollection, "started already")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func completeSteps(t *testing.T, v *Verification, now time.Time, names ...StepName) {
	t.Helper()
	for _, name := range names {
		_, err := v.AssignOfficer(name, uuid.New(), now)
		require.NoError(t, err)
		_, err = v.CompleteStep(name, "", nil, now)
		require.NoError(t, err)
	}
}

func TestAutoProgressToQualityReview(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	v := newTestVerification(fullScope(), StatusInProgress, now)

	// 4 of 6 done: 0.66 does not clear the 0.8 threshold.
	completeSteps(t, v, now, StepDocumentCollection, StepDocumentReview, StepFieldVerification, StepDataAnalysis)
	status, changed := v.AutoProgressStatus(now)
	assert.False(t, changed)
	assert.Equal(t, StatusInProgress, status)

	// 5 of 6 done: 0.83 clears it.
	completeSteps(t, v, now, StepReportGeneration)
	status, changed = v.AutoProgressStatus(now)
	assert.True(t, changed)
	assert.Equal(t, StatusQualityReview, status)
	assert.Equal(t, StatusQualityReview, v.Status)
	require.NotNil(t, v.Timeline.Data().QualityCheckDate)
}

func TestAutoProgressFieldWorkToAnalysis(t *testing.T) {
	now := time.Now()
	v := newTestVerification(fullScope(), StatusFieldWork, now)

	// 4 of 6 done: 0.66 clears the 0.6 field-work threshold.
	completeSteps(t, v, now, StepDocumentCollection, StepDocumentReview, StepFieldVerification, StepDataAnalysis)
	status, changed := v.AutoProgressStatus(now)
	assert.True(t, changed)
	assert.Equal(t, StatusAnalysis, status)
	require.NotNil(t, v.Timeline.Data().DraftReportDate)
}

func TestAutoProgressExactThresholdDoesNotFire(t *testing.T) {
	now := time.Now()
	// Physical-only scope yields 3 steps seen above, use a 5-step scope
	// instead: 3 of 5 completed is exactly 0.6.
	v := newTestVerification(DefaultScope(), StatusFieldWork, now)
	completeSteps(t, v, now, StepDocumentCollection, StepDocumentReview, StepDataAnalysis)

	_, changed := v.AutoProgressStatus(now)
	assert.False(t, changed)
	assert.Equal(t, StatusFieldWork, v.Status)
}

func TestAutoProgressAllStepsResolvedCompletes(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	v := newTestVerification(DefaultScope(), StatusQualityReview, now)

	completeSteps(t, v, now, StepDocumentCollection, StepDocumentReview, StepDataAnalysis, StepReportGeneration)
	_, err := v.SkipStep(StepQualityCheck, "senior officer sign-off")
	require.NoError(t, err)

	status, changed := v.AutoProgressStatus(now)
	assert.True(t, changed)
	assert.Equal(t, StatusCompleted, status)
	require.NotNil(t, v.CompletedAt)

	tl := v.Timeline.Data()
	require.NotNil(t, tl.ActualCompletionDate)
	require.NotNil(t, tl.SLACompliant)
}

func TestAutoProgressAllSkippedDoesNotComplete(t *testing.T) {
	now := time.Now()
	v := newTestVerification(Scope{MarketValuation: true}, StatusInProgress, now)

	for _, name := range []StepName{StepDataAnalysis, StepReportGeneration, StepQualityCheck} {
		_, err := v.SkipStep(name, "nothing applies")
		require.NoError(t, err)
	}

	_, changed := v.AutoProgressStatus(now)
	assert.False(t, changed)
	assert.Equal(t, StatusInProgress, v.Status)
}

func TestApplyStatusStampsSLACompliance(t *testing.T) {
	createdAt := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	onTime := newTestVerification(DefaultScope(), StatusQualityReview, createdAt)
	onTime.applyStatus(StatusCompleted, createdAt.Add(48*time.Hour))
	tl := onTime.Timeline.Data()
	require.NotNil(t, tl.SLACompliant)
	assert.True(t, *tl.SLACompliant)

	late := newTestVerification(DefaultScope(), StatusQualityReview, createdAt)
	late.applyStatus(StatusCompleted, createdAt.Add(100*time.Hour))
	tl = late.Timeline.Data()
	require.NotNil(t, tl.SLACompliant)
	assert.False(t, *tl.SLACompliant)
}

func TestStartSLAClock(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := newTestVerification(DefaultScope(), StatusPaymentPending, now)
	v.Urgency = UrgencyExpress

	v.StartSLAClock(now)

	tl := v.Timeline.Data()
	assert.Equal(t, 24, tl.CurrentSLA)
	require.NotNil(t, tl.ExpectedCompletionDate)
	assert.Equal(t, now.Add(24*time.Hour), *tl.ExpectedCompletionDate)
}

func TestIsOverdue(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := newTestVerification(DefaultScope(), StatusInProgress, now)

	// No deadline stamped yet.
	assert.False(t, v.IsOverdue(now.Add(1000*time.Hour)))

	v.StartSLAClock(now)
	assert.False(t, v.IsOverdue(now.Add(71*time.Hour)))
	assert.True(t, v.IsOverdue(now.Add(73*time.Hour)))

	// Terminal verifications are never overdue.
	v.Status = StatusCancelled
	assert.True(t, v.IsTerminal())
	assert.False(t, v.IsOverdue(now.Add(73*time.Hour)))
}

func TestCompletionProgress(t *testing.T) {
	now := time.Now()
	v := newTestVerification(DefaultScope(), StatusInProgress, now)
	assert.Equal(t, 0.0, v.CompletionProgress())

	completeSteps(t, v, now, StepDocumentCollection, StepDocumentReview)
	assert.InDelta(t, 40.0, v.CompletionProgress(), 0.001)
}
