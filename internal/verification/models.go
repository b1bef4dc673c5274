package verification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"land-registry/verification-portal/verification-portal-backend/internal/payments"
	"land-registry/verification-portal/verification-portal-backend/internal/scoring"
)

// Status is the single workflow status of a verification. It is always
// consistent with the step sequence: auto-progression and explicit
// overrides both go through the transition table.
type Status string

const (
	StatusPending        Status = "pending"
	StatusPaymentPending Status = "payment_pending"
	StatusInProgress     Status = "in_progress"
	StatusFieldWork      Status = "field_work"
	StatusAnalysis       Status = "analysis"
	StatusQualityReview  Status = "quality_review"
	StatusCompleted      Status = "completed"
	StatusDenied         Status = "denied"
	StatusExpired        Status = "expired"
	StatusCancelled      Status = "cancelled"
)

// Urgency fixes the SLA clock at creation.
type Urgency string

const (
	UrgencyStandard Urgency = "standard"
	UrgencyExpress  Urgency = "express"
	UrgencyUrgent   Urgency = "urgent"
)

// SLA hours per urgency tier. Fixed; only the urgency selection at
// creation varies per instance.
var slaHours = map[Urgency]int{
	UrgencyStandard: 72,
	UrgencyExpress:  24,
	UrgencyUrgent:   4,
}

// SLAHours returns the SLA window for an urgency tier.
func SLAHours(u Urgency) int {
	if h, ok := slaHours[u]; ok {
		return h
	}
	return slaHours[UrgencyStandard]
}

// ValidUrgency reports whether u is a known urgency tier.
func ValidUrgency(u Urgency) bool {
	_, ok := slaHours[u]
	return ok
}

// RequestType classifies what the client asked for.
type RequestType string

const (
	RequestOwnershipCheck    RequestType = "ownership_check"
	RequestTitleVerification RequestType = "title_verification"
	RequestEncumbranceCheck  RequestType = "encumbrance_check"
	RequestDueDiligence      RequestType = "due_diligence"
	RequestPrePurchase       RequestType = "pre_purchase"
	RequestLegalCompliance   RequestType = "legal_compliance"
	RequestMarketValuation   RequestType = "market_valuation"
)

// ValidRequestType reports whether t is a known request type.
func ValidRequestType(t RequestType) bool {
	switch t {
	case RequestOwnershipCheck, RequestTitleVerification, RequestEncumbranceCheck,
		RequestDueDiligence, RequestPrePurchase, RequestLegalCompliance, RequestMarketValuation:
		return true
	}
	return false
}

// Purpose records why the verification was requested.
type Purpose string

const (
	PurposePurchase         Purpose = "purchase"
	PurposeInvestment       Purpose = "investment"
	PurposeLegalProceedings Purpose = "legal_proceedings"
	PurposeDueDiligence     Purpose = "due_diligence"
	PurposeMortgage         Purpose = "mortgage"
	PurposeInsurance        Purpose = "insurance"
	PurposeInheritance      Purpose = "inheritance"
	PurposeCourtCase        Purpose = "court_case"
	PurposeTaxAssessment    Purpose = "tax_assessment"
	PurposeOther            Purpose = "other"
)

// ValidPurpose reports whether p is a known purpose.
func ValidPurpose(p Purpose) bool {
	switch p {
	case PurposePurchase, PurposeInvestment, PurposeLegalProceedings, PurposeDueDiligence,
		PurposeMortgage, PurposeInsurance, PurposeInheritance, PurposeCourtCase,
		PurposeTaxAssessment, PurposeOther:
		return true
	}
	return false
}

// Scope selects which verification activities apply. Immutable after
// creation except through the admin scope-change operation.
type Scope struct {
	OwnershipVerification bool `json:"ownership_verification"`
	TitleDocumentCheck    bool `json:"title_document_check"`
	EncumbranceSearch     bool `json:"encumbrance_search"`
	PhysicalInspection    bool `json:"physical_inspection"`
	MarketValuation       bool `json:"market_valuation"`
	LegalComplianceCheck  bool `json:"legal_compliance_check"`
	RiskAssessment        bool `json:"risk_assessment"`
}

// DefaultScope mirrors the defaults applied when the client selects
// nothing: ownership, title documents, encumbrances and risk assessment.
func DefaultScope() Scope {
	return Scope{
		OwnershipVerification: true,
		TitleDocumentCheck:    true,
		EncumbranceSearch:     true,
		RiskAssessment:        true,
	}
}

// Empty reports whether the scope selects no activity at all.
func (s Scope) Empty() bool {
	return !s.OwnershipVerification && !s.TitleDocumentCheck && !s.EncumbranceSearch &&
		!s.PhysicalInspection && !s.MarketValuation && !s.LegalComplianceCheck && !s.RiskAssessment
}

// StepName identifies one unit of workflow work. The set is closed;
// unknown names are rejected at the boundary.
type StepName string

const (
	StepDocumentCollection StepName = "document_collection"
	StepDocumentReview     StepName = "document_review"
	StepFieldVerification  StepName = "field_verification"
	StepDataAnalysis       StepName = "data_analysis"
	StepReportGeneration   StepName = "report_generation"
	StepQualityCheck       StepName = "quality_check"
)

// ValidStepName reports whether n is a known step name.
func ValidStepName(n StepName) bool {
	switch n {
	case StepDocumentCollection, StepDocumentReview, StepFieldVerification,
		StepDataAnalysis, StepReportGeneration, StepQualityCheck:
		return true
	}
	return false
}

// StepStatus is the state of one workflow step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepSkipped    StepStatus = "skipped"
	StepFailed     StepStatus = "failed"
)

// Step is one unit of the verification pipeline. CompletedAt is set iff
// the status is completed; ActualDuration is present only when both
// timestamps are.
type Step struct {
	Name              StepName   `json:"name"`
	Status            StepStatus `json:"status"`
	AssignedTo        *uuid.UUID `json:"assigned_to,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	EstimatedDuration float64    `json:"estimated_duration"` // hours
	ActualDuration    *float64   `json:"actual_duration,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	Deliverables      []string   `json:"deliverables,omitempty"`
	SkipReason        string     `json:"skip_reason,omitempty"`
}

// Timeline holds the SLA anchors for a verification.
type Timeline struct {
	RequestDate            time.Time  `json:"request_date"`
	WorkStartedDate        *time.Time `json:"work_started_date,omitempty"`
	FieldWorkDate          *time.Time `json:"field_work_date,omitempty"`
	DraftReportDate        *time.Time `json:"draft_report_date,omitempty"`
	QualityCheckDate       *time.Time `json:"quality_check_date,omitempty"`
	ExpectedCompletionDate *time.Time `json:"expected_completion_date,omitempty"`
	ActualCompletionDate   *time.Time `json:"actual_completion_date,omitempty"`
	CurrentSLA             int        `json:"current_sla"` // hours
	SLACompliant           *bool      `json:"sla_compliant,omitempty"`
}

// ClientDetails captures who is behind the request.
type ClientDetails struct {
	Organization  string `json:"organization,omitempty"`
	ContactPerson string `json:"contact_person,omitempty"`
	Relationship  string `json:"relationship,omitempty"`
}

// ReportMeta records that a report (and possibly a certificate) should
// exist for a completed verification. Rendering is external; only
// metadata and store references live here.
type ReportMeta struct {
	GeneratedAt           time.Time  `json:"generated_at"`
	GeneratedBy           uuid.UUID  `json:"generated_by"`
	ExecutiveSummary      string     `json:"executive_summary,omitempty"`
	Recommendations       []string   `json:"recommendations,omitempty"`
	ReportPath            string     `json:"report_path,omitempty"`
	CertificateIssued     bool       `json:"certificate_issued"`
	CertificateNumber     string     `json:"certificate_number,omitempty"`
	CertificateValidUntil *time.Time `json:"certificate_valid_until,omitempty"`
}

// AuditEntry is one immutable record in the aggregate's history. Total
// ordering is by timestamp with Seq as the insertion tie-break.
type AuditEntry struct {
	ID             uint           `gorm:"primaryKey;autoIncrement" json:"-"`
	VerificationID string         `gorm:"index;not null" json:"verification_id"`
	Seq            int            `gorm:"not null" json:"seq"`
	Action         string         `gorm:"not null" json:"action"`
	PerformedBy    uuid.UUID      `gorm:"type:uuid" json:"performed_by"`
	Timestamp      time.Time      `gorm:"not null" json:"timestamp"`
	Details        datatypes.JSON `gorm:"type:jsonb" json:"details,omitempty"`
}

// Verification is the aggregate root. One row per verification; embedded
// documents are typed JSON columns, audit entries an append-only child
// table. Version backs the optimistic compare-and-swap that serializes
// writers per aggregate.
type Verification struct {
	VerificationID  string      `gorm:"primaryKey" json:"verification_id"`
	ReferenceNumber string      `gorm:"index" json:"reference_number"`
	LandID          string      `gorm:"index;not null" json:"land_id"`
	RequestedBy     uuid.UUID   `gorm:"type:uuid;index;not null" json:"requested_by"`
	RequestType     RequestType `gorm:"not null" json:"request_type"`
	Purpose         Purpose     `gorm:"not null" json:"purpose"`
	Urgency         Urgency     `gorm:"not null" json:"urgency"`
	Status          Status      `gorm:"index;not null" json:"status"`

	ClientDetails datatypes.JSONType[ClientDetails]   `json:"client_details"`
	Scope         datatypes.JSONType[Scope]           `json:"scope"`
	Payment       datatypes.JSONType[payments.Ledger] `json:"payment"`
	Steps         datatypes.JSONType[[]Step]          `json:"workflow_steps"`
	Timeline      datatypes.JSONType[Timeline]        `json:"timeline"`

	Ownership    datatypes.JSONType[scoring.OwnershipDetails]     `json:"ownership_details"`
	Title        datatypes.JSONType[scoring.TitleVerification]    `json:"title_verification"`
	Encumbrances datatypes.JSONType[scoring.Encumbrances]         `json:"encumbrances"`
	Physical     datatypes.JSONType[scoring.PhysicalVerification] `json:"physical_verification"`

	Results datatypes.JSONType[*scoring.Results] `json:"results"`
	Report  datatypes.JSONType[*ReportMeta]      `json:"verification_report"`

	AuditTrail []AuditEntry `gorm:"foreignKey:VerificationID;references:VerificationID" json:"audit_trail,omitempty"`

	// AuditSeq is the last audit sequence number issued for this
	// aggregate.
	AuditSeq int `gorm:"not null;default:0" json:"-"`
	Version  int `gorm:"not null;default:1" json:"version"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JSON column setters. datatypes.JSONType values are immutable copies,
// so mutations unpack, modify and repack.

func (v *Verification) setSteps(steps []Step) {
	v.Steps = datatypes.NewJSONType(steps)
}

func (v *Verification) setTimeline(tl Timeline) {
	v.Timeline = datatypes.NewJSONType(tl)
}

func (v *Verification) setLedger(l payments.Ledger) {
	v.Payment = datatypes.NewJSONType(l)
}

func (v *Verification) setResults(r *scoring.Results) {
	v.Results = datatypes.NewJSONType(r)
}

func (v *Verification) setReport(r *ReportMeta) {
	v.Report = datatypes.NewJSONType(r)
}

// ScoringInput assembles the engine input from the current sub-records.
func (v *Verification) ScoringInput() scoring.Input {
	return scoring.Input{
		Ownership:    v.Ownership.Data(),
		Title:        v.Title.Data(),
		Encumbrances: v.Encumbrances.Data(),
		Physical:     v.Physical.Data(),
	}
}

// IsTerminal reports whether the verification reached a terminal status.
func (v *Verification) IsTerminal() bool {
	switch v.Status {
	case StatusCompleted, StatusDenied, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// IsOverdue reports whether the expected completion date has passed for
// a verification still in flight.
func (v *Verification) IsOverdue(now time.Time) bool {
	if v.IsTerminal() {
		return false
	}
	expected := v.Timeline.Data().ExpectedCompletionDate
	return expected != nil && now.After(*expected)
}

// CompletionProgress is the percentage of steps completed.
func (v *Verification) CompletionProgress() float64 {
	steps := v.Steps.Data()
	if len(steps) == 0 {
		return 0
	}
	completed := 0
	for _, s := range steps {
		if s.Status == StepCompleted {
			completed++
		}
	}
	return float64(completed) / float64(len(steps)) * 100
}

// ProcessingHours is the elapsed processing time, stopping at completion.
func (v *Verification) ProcessingHours(now time.Time) float64 {
	end := now
	if v.CompletedAt != nil {
		end = *v.CompletedAt
	}
	return end.Sub(v.CreatedAt).Hours()
}
