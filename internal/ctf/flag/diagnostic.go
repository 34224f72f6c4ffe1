package flag

import (
	"github.com/fortresslogs/ctfround/internal/ctf"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DiagnosticKind classifies a non-fatal finding about the event feed.
type DiagnosticKind string

const (
	DiagnosticBonusPickupWithoutCarrier DiagnosticKind = "BONUS_PICKUP_WITHOUT_CARRIER"
	DiagnosticCaptureWithoutCarrier     DiagnosticKind = "CAPTURE_WITHOUT_CARRIER"
	DiagnosticCaptureMultipleCarriers   DiagnosticKind = "CAPTURE_MULTIPLE_CARRIERS"
	DiagnosticMissingTeamData           DiagnosticKind = "MISSING_TEAM_DATA"
	DiagnosticMissingPlayer             DiagnosticKind = "MISSING_PLAYER"
	DiagnosticMissingScoreReport        DiagnosticKind = "MISSING_SCORE_REPORT"
	DiagnosticNonDefaultCapValue        DiagnosticKind = "NON_DEFAULT_CAP_VALUE"
	DiagnosticBonusCapEstimate          DiagnosticKind = "BONUS_CAP_ESTIMATE"
)

// level is the log level used when the diagnostic is emitted.
func (k DiagnosticKind) level() zapcore.Level {
	switch k {
	case DiagnosticBonusCapEstimate:
		return zapcore.InfoLevel
	case DiagnosticNonDefaultCapValue, DiagnosticMissingScoreReport:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// Diagnostic is a data-quality finding recorded while processing a round.
type Diagnostic struct {
	Kind       DiagnosticKind `json:"kind"`
	Message    string         `json:"message"`
	LineNumber int            `json:"line_number,omitempty"`
	GameTime   int            `json:"game_time_as_seconds,omitempty"`
	Player     string         `json:"player,omitempty"`
	Team       ctf.TeamColor  `json:"team"`
}

// diagnostics collects diagnostics in emission order and mirrors them to the log.
type diagnostics struct {
	logger *zap.Logger
	items  []Diagnostic
}

func (d *diagnostics) emit(diag Diagnostic) {
	d.items = append(d.items, diag)
	if d.logger == nil {
		return
	}
	if ce := d.logger.Check(diag.Kind.level(), diag.Message); ce != nil {
		ce.Write(
			zap.String("kind", string(diag.Kind)),
			zap.Int("line", diag.LineNumber),
			zap.Int("game_time", diag.GameTime),
			zap.String("player", diag.Player),
			zap.Stringer("team", diag.Team),
		)
	}
}

func (d *diagnostics) list() []Diagnostic {
	out := make([]Diagnostic, len(d.items))
	copy(out, d.items)
	return out
}
