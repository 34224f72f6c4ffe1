package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/fortresslogs/ctfround/internal/ctf"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// ToStruct converts the report to a protobuf Struct for feeds and exports.
func (r *Report) ToStruct() (*structpb.Struct, error) {
	scores := make(map[string]any, ctf.TeamCount)
	movements := make(map[string]any)
	for _, team := range ctf.AllTeams {
		scores[team.String()] = r.Scores[team]
		if r.Movements[team] == nil {
			continue
		}
		timeline := make([]any, 0, len(r.Movements[team]))
		for _, m := range r.Movements[team] {
			entry := map[string]any{
				"type":                 string(m.Type),
				"current_score":        m.RunningScore,
				"game_time_as_seconds": m.GameTime,
			}
			if m.Carrier != "" {
				entry["carrier"] = m.Carrier
			}
			if m.Fragger != "" {
				entry["fragger"] = m.Fragger
			}
			timeline = append(timeline, entry)
		}
		movements[team.String()] = timeline
	}

	diagnostics := make([]any, 0, len(r.Diagnostics))
	for _, d := range r.Diagnostics {
		diagnostics = append(diagnostics, map[string]any{
			"kind":    string(d.Kind),
			"message": d.Message,
			"line":    d.LineNumber,
		})
	}

	players := make([]any, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, map[string]any{
			"id":                 p.ID,
			"name":               p.Name,
			"team":               p.Team.String(),
			"carries":            p.Carries,
			"initial_touches":    p.InitialTouches,
			"throws":             p.Throws,
			"captures":           p.Captures,
			"carry_time_seconds": p.CarryTimeSeconds,
		})
	}

	analyzedAt, err := formatTimestamp(r.AnalyzedAt)
	if err != nil {
		return nil, err
	}

	st, err := structpb.NewStruct(map[string]any{
		"id":               r.ID.String(),
		"map":              r.MapName,
		"round_end":        r.RoundEnd,
		"analyzed_at":      analyzedAt,
		"scored_by_replay": r.ScoredByReplay,
		"winner":           r.Winner().String(),
		"points_per_cap":   r.PointValues.Cap,
		"points_per_bonus": r.PointValues.BonusCap,
		"scores":           scores,
		"flag_movements":   movements,
		"diagnostics":      diagnostics,
		"players":          players,
		"checksum":         r.Checksum,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to convert report: %w", err)
	}
	return st, nil
}

// formatTimestamp renders t in the protobuf JSON Timestamp format (RFC 3339, UTC).
func formatTimestamp(t time.Time) (string, error) {
	data, err := protojson.Marshal(timestamppb.New(t))
	if err != nil {
		return "", fmt.Errorf("failed to marshal timestamp: %w", err)
	}
	return strings.Trim(string(data), `"`), nil
}

// MarshalProtoJSON encodes the report as protobuf JSON.
func (r *Report) MarshalProtoJSON() ([]byte, error) {
	st, err := r.ToStruct()
	if err != nil {
		return nil, err
	}
	data, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return data, nil
}
