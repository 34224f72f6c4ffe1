package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fortresslogs/ctfround/internal/ctf"
	"github.com/fortresslogs/ctfround/internal/ctf/flag"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// ErrRoundNotFinalized is returned when a report is requested before round end.
var ErrRoundNotFinalized = errors.New("round not finalized")

// PlayerFlagStats are a player's flag counters for the round.
type PlayerFlagStats struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Team             ctf.TeamColor `json:"team"`
	Carries          int           `json:"carries"`
	InitialTouches   int           `json:"initial_touches"`
	Throws           int           `json:"throws"`
	Captures         int           `json:"captures"`
	CarryTimeSeconds int           `json:"carry_time_seconds"`
}

// Report is the analysed outcome of one round.
type Report struct {
	ID             uuid.UUID
	MapName        string
	RoundEnd       int
	AnalyzedAt     time.Time
	Scores         ctf.ScoreMap
	Movements      ctf.TeamFlagMovements
	PointValues    flag.PointValues
	ScoredByReplay bool
	Diagnostics    []flag.Diagnostic
	Players        []PlayerFlagStats
	Checksum       string
}

// New builds a report from a finalized flag tracker.
func New(state *ctf.RoundState, players []*ctf.Player, tracker *flag.Tracker) (*Report, error) {
	if !tracker.Finalized() {
		return nil, ErrRoundNotFinalized
	}

	r := &Report{
		ID:             uuid.New(),
		MapName:        state.MapName,
		RoundEnd:       state.RoundEndTimeInGameSeconds,
		AnalyzedAt:     time.Now().UTC(),
		Scores:         tracker.Score(),
		Movements:      tracker.Movements(),
		PointValues:    tracker.PointValues(),
		ScoredByReplay: !tracker.ScoreReported(),
		Diagnostics:    tracker.Diagnostics(),
		Players:        make([]PlayerFlagStats, 0, len(players)),
	}
	for _, p := range players {
		r.Players = append(r.Players, PlayerFlagStats{
			ID:               p.ID,
			Name:             p.Name,
			Team:             p.Team,
			Carries:          p.RoundStats.FlagCarries,
			InitialTouches:   p.RoundStats.FlagInitialTouches,
			Throws:           p.RoundStats.FlagThrows,
			Captures:         p.RoundStats.FlagCaptures,
			CarryTimeSeconds: p.RoundStats.FlagCarryTimeInSeconds,
		})
	}
	r.Checksum = r.ComputeChecksum()
	return r, nil
}

// ComputeChecksum returns a BLAKE2b-256 digest of the round outcome. The report ID
// and analysis time are excluded, so analysing the same log twice yields the same
// checksum.
func (r *Report) ComputeChecksum() string {
	sum := blake2b.Sum256([]byte(r.deterministicRepresentation()))
	return fmt.Sprintf("%x", sum)
}

func (r *Report) deterministicRepresentation() string {
	var b strings.Builder

	fmt.Fprintf(&b, "ROUND:%s|%d|%t\n", r.MapName, r.RoundEnd, r.ScoredByReplay)
	fmt.Fprintf(&b, "POINTS:%g|%g|%g\n", r.PointValues.Cap, r.PointValues.BonusCap, r.PointValues.HoldBonus)

	for _, team := range ctf.AllTeams {
		fmt.Fprintf(&b, "SCORE:%s|%d\n", team, r.Scores[team])
		for _, m := range r.Movements[team] {
			fmt.Fprintf(&b, "MOVE:%s|%s|%s|%s|%g|%d\n", team, m.Type, m.Carrier, m.Fragger, m.RunningScore, m.GameTime)
		}
	}
	for _, d := range r.Diagnostics {
		fmt.Fprintf(&b, "DIAG:%s|%d|%d|%s|%s|%s\n", d.Kind, d.LineNumber, d.GameTime, d.Player, d.Team, d.Message)
	}
	for _, p := range r.Players {
		fmt.Fprintf(&b, "PLAYER:%s|%s|%s|%d|%d|%d|%d|%d\n",
			p.ID, p.Name, p.Team, p.Carries, p.InitialTouches, p.Throws, p.Captures, p.CarryTimeSeconds)
	}
	return b.String()
}

// Winner returns the team with the highest score, or TeamNone on a tie.
func (r *Report) Winner() ctf.TeamColor {
	best := ctf.TeamNone
	bestScore := 0
	tie := false
	for _, team := range ctf.AllTeams {
		score := r.Scores[team]
		switch {
		case score > bestScore:
			best, bestScore, tie = team, score, false
		case score == bestScore && score > 0:
			tie = true
		}
	}
	if tie {
		return ctf.TeamNone
	}
	return best
}
