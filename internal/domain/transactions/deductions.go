package transactions

import (
	"fmt"

	"github.com/dirtsid3r/cellflip/internal/domain/listings"
)

// Deduction rates in basis points of the bid.
const (
	ConditionMismatchBps = 1000
	FunctionalIssueBps   = 500
	CosmeticIssueBps     = 300
	MissingAccessoryBps  = 500
	LowBatteryBps        = 800

	// LowBatteryThreshold is the battery health below which LowBatteryBps applies.
	LowBatteryThreshold = 80
	// RequiredCoreAccessories is how many of box and charger must be present.
	RequiredCoreAccessories = 2
)

// deductionRule fixes the category, rate and severity of one kind of deduction.
type deductionRule struct {
	category Category
	rateBps  int64
	severity Severity
}

var (
	conditionMismatchRule = deductionRule{CategoryConditionMismatch, ConditionMismatchBps, SeverityModerate}
	functionalIssueRule   = deductionRule{CategoryFunctional, FunctionalIssueBps, SeverityMajor}
	cosmeticIssueRule     = deductionRule{CategoryCosmetic, CosmeticIssueBps, SeverityMinor}
	missingAccessoryRule  = deductionRule{CategoryMissingAccessory, MissingAccessoryBps, SeverityModerate}
	// Low battery is a functional fault.
	lowBatteryRule = deductionRule{CategoryFunctional, LowBatteryBps, SeverityMajor}
)

func (r deductionRule) apply(description string) Deduction {
	return Deduction{
		Category:    r.category,
		Description: description,
		RateBps:     r.rateBps,
		Severity:    r.severity,
	}
}

// DeductionResult is the outcome of pricing an inspection against a bid.
type DeductionResult struct {
	Deductions []Deduction
	Total      int64
	FinalOffer int64
}

// CalculateDeductions prices an inspection against the accepted bid.
// Amounts are clamped so their sum never exceeds bid and the final offer is never negative.
func CalculateDeductions(bid int64, declared listings.Condition, in Inspection) DeductionResult {
	var candidates []Deduction

	// Any difference from the listed condition counts, better or worse.
	if in.ActualCondition != declared {
		candidates = append(candidates, conditionMismatchRule.apply(
			fmt.Sprintf("listed as %s, inspected as %s", declared, in.ActualCondition)))
	}
	for _, issue := range in.FunctionalIssues {
		candidates = append(candidates, functionalIssueRule.apply(issue))
	}
	for _, issue := range in.CosmeticIssues {
		candidates = append(candidates, cosmeticIssueRule.apply(issue))
	}
	if in.Accessories.CoreCount() < RequiredCoreAccessories {
		candidates = append(candidates, missingAccessoryRule.apply(missingAccessories(in.Accessories)))
	}
	if in.BatteryHealth < LowBatteryThreshold {
		candidates = append(candidates, lowBatteryRule.apply(fmt.Sprintf("battery health %d%%", in.BatteryHealth)))
	}

	result := DeductionResult{Deductions: make([]Deduction, 0, len(candidates))}
	for _, d := range candidates {
		d.Amount = min(bid*d.RateBps/10_000, bid-result.Total)
		result.Total += d.Amount
		result.Deductions = append(result.Deductions, d)
	}
	result.FinalOffer = bid - result.Total
	return result
}

func missingAccessories(a listings.Accessories) string {
	switch {
	case !a.Box && !a.Charger:
		return "box and charger missing"
	case !a.Box:
		return "box missing"
	default:
		return "charger missing"
	}
}
