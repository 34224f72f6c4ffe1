package flag

import (
	"fmt"
	"math"

	"github.com/fortresslogs/ctfround/internal/ctf"
)

const (
	// DefaultCapPoints is the value of a normal capture on standard maps.
	DefaultCapPoints = 10
	// DefaultHoldBonusPoints is the value of a team flag hold bonus (ss_nyx_ectfc).
	DefaultHoldBonusPoints = 5
)

// PointValues are the points awarded per scoring flag event.
type PointValues struct {
	Cap       float64
	BonusCap  float64
	HoldBonus float64
}

// DefaultPointValues returns the standard point values.
func DefaultPointValues() PointValues {
	return PointValues{
		Cap:       DefaultCapPoints,
		BonusCap:  DefaultCapPoints,
		HoldBonus: DefaultHoldBonusPoints,
	}
}

// estimatePointValues infers capture values from the reference team's reported
// score. Without any reported score the defaults are kept.
func estimatePointValues(defaults PointValues, stats *statsByTeam, reference ctf.TeamColor, diags *diagnostics) PointValues {
	points := defaults

	if !stats.sawReportedScore() {
		diags.emit(Diagnostic{
			Kind:    DiagnosticMissingScoreReport,
			Message: "no ending score reported, counting captures instead",
		})
		return points
	}

	ref := &stats[reference]
	if ref.ReportedScore == nil || *ref.ReportedScore <= 0 {
		return points
	}
	reported := float64(*ref.ReportedScore)

	switch {
	case ref.BonusCapCount > 0:
		// Maps with bonus captures (e.g. coast-to-coast): assume normal captures
		// are worth the default and spread the remainder over bonus captures.
		points.Cap = defaults.Cap
		bonusTotal := reported - points.Cap*float64(ref.CapCount)
		points.BonusCap = points.Cap + bonusTotal/float64(ref.BonusCapCount)
		msg := fmt.Sprintf("estimated %g points per bonus capture (%d captures and %d bonus captures observed)",
			points.BonusCap, ref.CapCount, ref.BonusCapCount)
		diags.emit(Diagnostic{Kind: DiagnosticBonusCapEstimate, Message: msg, Team: reference})
	case ref.CapCount > 0:
		holdBonusTotal := float64(ref.HoldBonusCount) * points.HoldBonus
		points.Cap = (reported - holdBonusTotal) / float64(ref.CapCount)
	}

	// Running scores never decrease, whatever the reported score claims.
	points.Cap = math.Max(points.Cap, 0)
	points.BonusCap = math.Max(points.BonusCap, 0)

	if points.Cap != defaults.Cap {
		diags.emit(Diagnostic{
			Kind:    DiagnosticNonDefaultCapValue,
			Message: fmt.Sprintf("points per capture is %g", points.Cap),
			Team:    reference,
		})
	}
	return points
}
