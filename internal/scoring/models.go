package scoring

// Sub-records of a verification that feed the score. These are collected
// by officers during the workflow and stored on the aggregate; the engine
// only ever reads them.

// OwnershipDetails captures what was established about the current owner.
type OwnershipDetails struct {
	CurrentOwner    string `json:"current_owner,omitempty"`
	OwnershipType   string `json:"ownership_type,omitempty"`
	OwnerRegistered bool   `json:"owner_registered"`
	OwnerVerified   bool   `json:"owner_verified"`
}

// DocumentCheck is the reviewed state of one title document. Paths
// reference the external document store and are never dereferenced here.
type DocumentCheck struct {
	Exists       bool   `json:"exists"`
	Verified     bool   `json:"verified"`
	Number       string `json:"number,omitempty"`
	DocumentPath string `json:"document_path,omitempty"`
}

// TitleVerification groups the core title document checks.
type TitleVerification struct {
	CertificateOfOccupancy DocumentCheck `json:"certificate_of_occupancy"`
	DeedOfAssignment       DocumentCheck `json:"deed_of_assignment"`
	SurveyPlan             DocumentCheck `json:"survey_plan"`
}

// LegalCase is a court case attached to the land.
type LegalCase struct {
	CaseNumber string `json:"case_number"`
	Court      string `json:"court,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Status     string `json:"status,omitempty"`
}

// Mortgage is a registered mortgage over the land.
type Mortgage struct {
	Lender             string `json:"lender"`
	Amount             int64  `json:"amount,omitempty"`
	Status             string `json:"status,omitempty"`
	OutstandingBalance int64  `json:"outstanding_balance,omitempty"`
}

// Encumbrances is the outcome of the encumbrance search.
type Encumbrances struct {
	HasEncumbrances bool        `json:"has_encumbrances"`
	SearchedBy      string      `json:"searched_by,omitempty"`
	LegalCases      []LegalCase `json:"legal_cases,omitempty"`
	Mortgages       []Mortgage  `json:"mortgages,omitempty"`
}

// PhysicalFindings are the on-site observations.
type PhysicalFindings struct {
	LandExists      bool   `json:"land_exists"`
	BoundariesMatch bool   `json:"boundaries_match"`
	NoEncroachment  bool   `json:"no_encroachment"`
	CurrentUse      string `json:"current_use,omitempty"`
	Observations    string `json:"observations,omitempty"`
}

// PhysicalVerification is the field inspection sub-record.
type PhysicalVerification struct {
	Conducted  bool             `json:"conducted"`
	VerifiedBy string           `json:"verified_by,omitempty"`
	Findings   PhysicalFindings `json:"findings"`
}

// Input is everything the engine reads for one computation.
type Input struct {
	Ownership    OwnershipDetails     `json:"ownership"`
	Title        TitleVerification    `json:"title"`
	Encumbrances Encumbrances         `json:"encumbrances"`
	Physical     PhysicalVerification `json:"physical"`
}

// OverallStatus classifies the aggregate score.
type OverallStatus string

const (
	StatusVerified            OverallStatus = "verified"
	StatusVerifiedWithCaution OverallStatus = "verified_with_caution"
	StatusInconclusive        OverallStatus = "inconclusive"
	StatusNotVerified         OverallStatus = "not_verified"
)

// Confidence expresses how much weight the overall status carries.
type Confidence string

const (
	ConfidenceHigh    Confidence = "high"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceLow     Confidence = "low"
	ConfidenceVeryLow Confidence = "very_low"
)

// Severity grades a red flag.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Flag is a scored finding. Red flags carry a severity; green flags
// leave it empty.
type Flag struct {
	Severity       Severity `json:"severity,omitempty"`
	Category       string   `json:"category"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// ScoreBreakdown holds the per-category sub-scores, each 0-100.
type ScoreBreakdown struct {
	OwnershipScore     int `json:"ownership_score"`
	DocumentationScore int `json:"documentation_score"`
	LegalScore         int `json:"legal_score"`
	PhysicalScore      int `json:"physical_score"`
}

// Results is the computed outcome of a verification. Re-scoring replaces
// it wholesale; it is never partially merged.
type Results struct {
	ScoreBreakdown    ScoreBreakdown `json:"score_breakdown"`
	VerificationScore int            `json:"verification_score"`
	OverallStatus     OverallStatus  `json:"overall_status"`
	ConfidenceLevel   Confidence     `json:"confidence_level"`
	RedFlags          []Flag         `json:"red_flags"`
	GreenFlags        []Flag         `json:"green_flags"`
}
