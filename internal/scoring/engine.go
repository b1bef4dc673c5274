// Package scoring computes the multi-factor verification score and risk
// classification. Compute is a pure function of its input: identical
// sub-records always produce identical results.
package scoring

import "math"

// Category weights of the aggregate score.
const (
	weightOwnership     = 0.25
	weightDocumentation = 0.30
	weightLegal         = 0.20
	weightPhysical      = 0.25
)

// FlagRule inspects the input and may contribute red or green flags.
type FlagRule func(in Input) (red []Flag, green []Flag)

// Engine scores a verification. Flag rules are registered at
// construction so risk checks can grow without touching the score math.
type Engine struct {
	rules []FlagRule
}

// NewEngine creates an engine with the built-in flag rules.
func NewEngine(extra ...FlagRule) *Engine {
	rules := []FlagRule{legalCaseRule, ownershipRule, documentationRule, physicalRule}
	rules = append(rules, extra...)
	return &Engine{rules: rules}
}

// Compute derives the score breakdown, the weighted aggregate, the
// overall classification and the flag set from the current sub-records.
func (e *Engine) Compute(in Input) Results {
	breakdown := ScoreBreakdown{
		OwnershipScore:     ownershipScore(in.Ownership),
		DocumentationScore: documentationScore(in.Title),
		LegalScore:         legalScore(in.Encumbrances),
		PhysicalScore:      physicalScore(in.Physical),
	}

	total := float64(breakdown.OwnershipScore)*weightOwnership +
		float64(breakdown.DocumentationScore)*weightDocumentation +
		float64(breakdown.LegalScore)*weightLegal +
		float64(breakdown.PhysicalScore)*weightPhysical
	score := int(math.Round(total))

	results := Results{
		ScoreBreakdown:    breakdown,
		VerificationScore: score,
		RedFlags:          []Flag{},
		GreenFlags:        []Flag{},
	}

	switch {
	case score >= 80:
		results.OverallStatus = StatusVerified
		results.ConfidenceLevel = ConfidenceHigh
	case score >= 60:
		results.OverallStatus = StatusVerifiedWithCaution
		results.ConfidenceLevel = ConfidenceMedium
	case score >= 40:
		results.OverallStatus = StatusInconclusive
		results.ConfidenceLevel = ConfidenceLow
	default:
		results.OverallStatus = StatusNotVerified
		results.ConfidenceLevel = ConfidenceVeryLow
	}

	for _, rule := range e.rules {
		red, green := rule(in)
		results.RedFlags = append(results.RedFlags, red...)
		results.GreenFlags = append(results.GreenFlags, green...)
	}

	return results
}

// ownershipScore: 40 unverified, 85 verified, +15 when also registered.
func ownershipScore(o OwnershipDetails) int {
	if !o.OwnerVerified {
		return 40
	}
	score := 85
	if o.OwnerRegistered {
		score += 15
	}
	return capScore(score)
}

// documentationScore sums fixed weights for document presence and
// verification: C-of-O 40/20, deed 25, survey plan 15.
func documentationScore(t TitleVerification) int {
	score := 0
	if t.CertificateOfOccupancy.Exists {
		score += 40
	}
	if t.CertificateOfOccupancy.Verified {
		score += 20
	}
	if t.DeedOfAssignment.Exists {
		score += 25
	}
	if t.SurveyPlan.Exists {
		score += 15
	}
	return capScore(score)
}

// legalScore starts at 100 and deducts for encumbrances, legal cases and
// mortgages. Deductions only apply when the encumbrance search found
// anything at all.
func legalScore(e Encumbrances) int {
	score := 100
	if e.HasEncumbrances {
		score -= 30
		if len(e.LegalCases) > 0 {
			score -= 20
		}
		if len(e.Mortgages) > 0 {
			score -= 15
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

// physicalScore: 50 when no inspection was conducted; otherwise 75, +15
// when boundaries match the survey, -20 when encroachment was found.
func physicalScore(p PhysicalVerification) int {
	if !p.Conducted {
		return 50
	}
	score := 75
	if p.Findings.BoundariesMatch {
		score += 15
	}
	if !p.Findings.NoEncroachment {
		score -= 20
	}
	if score < 0 {
		score = 0
	}
	return capScore(score)
}

func capScore(score int) int {
	if score > 100 {
		return 100
	}
	return score
}

// Built-in flag rules.

func legalCaseRule(in Input) ([]Flag, []Flag) {
	if len(in.Encumbrances.LegalCases) == 0 {
		return nil, nil
	}
	return []Flag{{
		Severity:       SeverityHigh,
		Category:       "Legal",
		Description:    "Active legal cases associated with the property.",
		Recommendation: "Thorough legal review required before proceeding.",
	}}, nil
}

func ownershipRule(in Input) ([]Flag, []Flag) {
	if in.Ownership.OwnerVerified && in.Ownership.OwnerRegistered {
		return nil, []Flag{{
			Category:    "Ownership",
			Description: "Owner identity verified and registered with the land registry.",
		}}
	}
	return nil, nil
}

func documentationRule(in Input) ([]Flag, []Flag) {
	t := in.Title
	if t.CertificateOfOccupancy.Exists && t.CertificateOfOccupancy.Verified &&
		t.DeedOfAssignment.Exists && t.SurveyPlan.Exists {
		return nil, []Flag{{
			Category:    "Documentation",
			Description: "All core title documents present, certificate of occupancy verified.",
		}}
	}
	return nil, nil
}

func physicalRule(in Input) ([]Flag, []Flag) {
	p := in.Physical
	if p.Conducted && p.Findings.BoundariesMatch && p.Findings.NoEncroachment {
		return nil, []Flag{{
			Category:    "Physical",
			Description: "Inspection confirmed boundaries with no encroachment.",
		}}
	}
	return nil, nil
}
