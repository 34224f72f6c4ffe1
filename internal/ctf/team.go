package ctf

import (
	"fmt"
	"strings"
)

// TeamColor identifies a team. Flags are owned by teams, so the same value also
// identifies a team's flag.
type TeamColor int

const (
	TeamNone TeamColor = iota
	TeamBlue
	TeamRed
	TeamYellow
	TeamGreen
	TeamSpectator

	// TeamCount is the number of team colors; per-team arrays are sized with it.
	TeamCount = int(TeamSpectator) + 1
)

// AllTeams lists every team color in declaration order.
var AllTeams = [TeamCount]TeamColor{
	TeamNone,
	TeamBlue,
	TeamRed,
	TeamYellow,
	TeamGreen,
	TeamSpectator,
}

// String returns the lowercase log name of the team.
func (t TeamColor) String() string {
	switch t {
	case TeamNone:
		return "none"
	case TeamBlue:
		return "blue"
	case TeamRed:
		return "red"
	case TeamYellow:
		return "yellow"
	case TeamGreen:
		return "green"
	case TeamSpectator:
		return "spectator"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the known team colors.
func (t TeamColor) Valid() bool {
	return t >= TeamNone && int(t) < TeamCount
}

// ParseTeamColor maps a log team name to a TeamColor. Matching is case-insensitive
// and accepts the numeric team ids used by the game server (1-4).
func ParseTeamColor(s string) (TeamColor, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "0":
		return TeamNone, nil
	case "blue", "1":
		return TeamBlue, nil
	case "red", "2":
		return TeamRed, nil
	case "yellow", "3":
		return TeamYellow, nil
	case "green", "4":
		return TeamGreen, nil
	case "spectator", "spectators", "spec":
		return TeamSpectator, nil
	default:
		return TeamNone, fmt.Errorf("unknown team %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t TeamColor) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TeamColor) UnmarshalText(text []byte) error {
	parsed, err := ParseTeamColor(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ScoreMap holds one final score per team.
type ScoreMap [TeamCount]int

// Get returns the score of a team.
func (s ScoreMap) Get(team TeamColor) int {
	if !team.Valid() {
		return 0
	}
	return s[team]
}
