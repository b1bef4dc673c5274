package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cleanInput() Input {
	return Input{
		Ownership: OwnershipDetails{
			CurrentOwner:    "Adaeze Obi",
			OwnerVerified:   true,
			OwnerRegistered: true,
		},
		Title: TitleVerification{
			CertificateOfOccupancy: DocumentCheck{Exists: true, Verified: true},
			DeedOfAssignment:       DocumentCheck{Exists: true},
			SurveyPlan:             DocumentCheck{Exists: true},
		},
		Encumbrances: Encumbrances{HasEncumbrances: false},
		Physical: PhysicalVerification{
			Conducted: true,
			Findings: PhysicalFindings{
				LandExists:      true,
				BoundariesMatch: true,
				NoEncroachment:  true,
			},
		},
	}
}

func TestComputeCleanPropertyScoresVerified(t *testing.T) {
	engine := NewEngine()
	results := engine.Compute(cleanInput())

	assert.Equal(t, 100, results.ScoreBreakdown.OwnershipScore)
	assert.Equal(t, 100, results.ScoreBreakdown.DocumentationScore)
	assert.Equal(t, 100, results.ScoreBreakdown.LegalScore)
	assert.Equal(t, 90, results.ScoreBreakdown.PhysicalScore)

	// 100*0.25 + 100*0.30 + 100*0.20 + 90*0.25 = 97.5, rounded up
	assert.Equal(t, 98, results.VerificationScore)
	assert.Equal(t, StatusVerified, results.OverallStatus)
	assert.Equal(t, ConfidenceHigh, results.ConfidenceLevel)
	assert.Empty(t, results.RedFlags)
	assert.Len(t, results.GreenFlags, 3)
}

func TestComputeIsDeterministic(t *testing.T) {
	engine := NewEngine()
	in := cleanInput()
	first := engine.Compute(in)
	second := engine.Compute(in)
	assert.Equal(t, first, second)
}

func TestComputeActiveLegalCasesRaiseRedFlag(t *testing.T) {
	engine := NewEngine()
	in := cleanInput()
	in.Encumbrances = Encumbrances{
		HasEncumbrances: true,
		LegalCases: []LegalCase{
			{CaseNumber: "HC/L/412/2024", Court: "High Court Lagos", Status: "active"},
		},
	}

	results := engine.Compute(in)

	// 100 base, -30 encumbrances, -20 legal cases
	assert.Equal(t, 50, results.ScoreBreakdown.LegalScore)

	require.Len(t, results.RedFlags, 1)
	flag := results.RedFlags[0]
	assert.Equal(t, SeverityHigh, flag.Severity)
	assert.Equal(t, "Legal", flag.Category)
	assert.NotEmpty(t, flag.Recommendation)
}

func TestLegalScoreDeductions(t *testing.T) {
	tests := []struct {
		name string
		enc  Encumbrances
		want int
	}{
		{"clean search", Encumbrances{}, 100},
		{"encumbrances only", Encumbrances{HasEncumbrances: true}, 70},
		{
			"encumbrances and cases",
			Encumbrances{HasEncumbrances: true, LegalCases: []LegalCase{{CaseNumber: "A/1"}}},
			50,
		},
		{
			"everything",
			Encumbrances{
				HasEncumbrances: true,
				LegalCases:      []LegalCase{{CaseNumber: "A/1"}},
				Mortgages:       []Mortgage{{Lender: "First Bank"}},
			},
			35,
		},
		{
			// Flag data without the search flag set contributes nothing.
			"cases recorded but search flag unset",
			Encumbrances{LegalCases: []LegalCase{{CaseNumber: "A/1"}}},
			100,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, legalScore(tt.enc))
		})
	}
}

func TestOwnershipScore(t *testing.T) {
	assert.Equal(t, 40, ownershipScore(OwnershipDetails{}))
	assert.Equal(t, 85, ownershipScore(OwnershipDetails{OwnerVerified: true}))
	assert.Equal(t, 100, ownershipScore(OwnershipDetails{OwnerVerified: true, OwnerRegistered: true}))
	// Registration without verification does not count.
	assert.Equal(t, 40, ownershipScore(OwnershipDetails{OwnerRegistered: true}))
}

func TestDocumentationScore(t *testing.T) {
	assert.Equal(t, 0, documentationScore(TitleVerification{}))
	assert.Equal(t, 40, documentationScore(TitleVerification{
		CertificateOfOccupancy: DocumentCheck{Exists: true},
	}))
	assert.Equal(t, 100, documentationScore(TitleVerification{
		CertificateOfOccupancy: DocumentCheck{Exists: true, Verified: true},
		DeedOfAssignment:       DocumentCheck{Exists: true},
		SurveyPlan:             DocumentCheck{Exists: true},
	}))
}

func TestPhysicalScore(t *testing.T) {
	assert.Equal(t, 50, physicalScore(PhysicalVerification{}))
	assert.Equal(t, 75, physicalScore(PhysicalVerification{
		Conducted: true,
		Findings:  PhysicalFindings{NoEncroachment: true},
	}))
	assert.Equal(t, 90, physicalScore(PhysicalVerification{
		Conducted: true,
		Findings:  PhysicalFindings{BoundariesMatch: true, NoEncroachment: true},
	}))
	assert.Equal(t, 55, physicalScore(PhysicalVerification{
		Conducted: true,
		Findings:  PhysicalFindings{},
	}))
}

func TestComputeThresholds(t *testing.T) {
	engine := NewEngine()

	tests := []struct {
		name       string
		in         Input
		status     OverallStatus
		confidence Confidence
	}{
		{
			name:       "clean property verified",
			in:         cleanInput(),
			status:     StatusVerified,
			confidence: ConfidenceHigh,
		},
		{
			// 85*0.25 + 100*0.30 + 100*0.20 + 50*0.25 = 83.75
			name: "unregistered owner no inspection still verified",
			in: func() Input {
				in := cleanInput()
				in.Ownership.OwnerRegistered = false
				in.Physical = PhysicalVerification{}
				return in
			}(),
			status:     StatusVerified,
			confidence: ConfidenceHigh,
		},
		{
			// 40*0.25 + 100*0.30 + 100*0.20 + 50*0.25 = 72.5
			name: "unverified owner drops to caution",
			in: func() Input {
				in := cleanInput()
				in.Ownership = OwnershipDetails{}
				in.Physical = PhysicalVerification{}
				return in
			}(),
			status:     StatusVerifiedWithCaution,
			confidence: ConfidenceMedium,
		},
		{
			// 40*0.25 + 0*0.30 + 100*0.20 + 50*0.25 = 42.5
			name: "no documentation inconclusive",
			in: Input{
				Encumbrances: Encumbrances{},
			},
			status:     StatusInconclusive,
			confidence: ConfidenceLow,
		},
		{
			// 40*0.25 + 0*0.30 + 35*0.20 + 50*0.25 = 29.5
			name: "nothing verified and encumbered not verified",
			in: Input{
				Encumbrances: Encumbrances{
					HasEncumbrances: true,
					LegalCases:      []LegalCase{{CaseNumber: "A/1"}},
					Mortgages:       []Mortgage{{Lender: "GTB"}},
				},
			},
			status:     StatusNotVerified,
			confidence: ConfidenceVeryLow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := engine.Compute(tt.in)
			assert.Equal(t, tt.status, results.OverallStatus, "score %d", results.VerificationScore)
			assert.Equal(t, tt.confidence, results.ConfidenceLevel)
		})
	}
}

func TestExtraFlagRules(t *testing.T) {
	custom := func(in Input) ([]Flag, []Flag) {
		if in.Physical.Findings.CurrentUse == "industrial" {
			return []Flag{{Severity: SeverityMedium, Category: "Zoning", Description: "Industrial use on residential land."}}, nil
		}
		return nil, nil
	}
	engine := NewEngine(custom)

	in := cleanInput()
	in.Physical.Findings.CurrentUse = "industrial"
	results := engine.Compute(in)

	require.Len(t, results.RedFlags, 1)
	assert.Equal(t, "Zoning", results.RedFlags[0].Category)
}
