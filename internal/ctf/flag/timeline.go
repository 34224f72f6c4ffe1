package flag

import (
	"math"

	"github.com/fortresslogs/ctfround/internal/ctf"
)

// buildTimelines replays each team's recorded flag events into a movement
// timeline with a running score, and derives the final score map.
func buildTimelines(stats *statsByTeam, points PointValues) (ctf.ScoreMap, ctf.TeamFlagMovements) {
	var scores ctf.ScoreMap
	var movements ctf.TeamFlagMovements

	for _, team := range ctf.AllTeams {
		teamStats := &stats[team]
		if len(teamStats.Events) > 0 {
			timeline, running := replayTeam(teamStats.Events, points)
			movements[team] = timeline
			scores[team] = int(math.Round(running))
		}
		if teamStats.ReportedScore != nil {
			scores[team] = *teamStats.ReportedScore
		}
	}
	return scores, movements
}

func replayTeam(events []ctf.Event, points PointValues) ([]ctf.FlagMovement, float64) {
	timeline := make([]ctf.FlagMovement, 0, len(events))
	running := 0.0

	for i := range events {
		ev := &events[i]
		movement := ctf.FlagMovement{GameTime: ev.GameTime}

		switch ev.Type {
		case ctf.EventTeamFlagHoldBonus:
			running += points.HoldBonus
			movement.Type = ctf.FlagMovementCaptured
			movement.Carrier = ctf.TeamCarrier
		case ctf.EventPlayerPickedUpFlag:
			movement.Type = ctf.FlagMovementPickup
			movement.Carrier = ev.PlayerFrom.DisplayName()
		case ctf.EventFlagReturn:
			movement.Type = ctf.FlagMovementReturned
		case ctf.EventPlayerThrewFlag:
			movement.Type = ctf.FlagMovementThrown
			movement.Carrier = ev.PlayerFrom.DisplayName()
		case ctf.EventPlayerFraggedPlayer, ctf.EventPlayerCommitSuicide:
			movement.Type = ctf.FlagMovementFragged
			movement.Fragger = ev.PlayerFrom.DisplayName()
			movement.Carrier = droppingPlayer(ev).DisplayName()
		case ctf.EventPlayerLeftServer:
			movement.Type = ctf.FlagMovementDropped
			movement.Carrier = droppingPlayer(ev).DisplayName()
		case ctf.EventPlayerCapturedBonusFlag:
			running += points.BonusCap
			movement.Type = ctf.FlagMovementCaptured
			movement.Carrier = ev.PlayerFrom.DisplayName()
		case ctf.EventPlayerCapturedFlag:
			running += points.Cap
			movement.Type = ctf.FlagMovementCaptured
			movement.Carrier = ev.PlayerFrom.DisplayName()
		default:
			// bonus pickups only change flag state
			continue
		}

		movement.RunningScore = running
		timeline = append(timeline, movement)
	}
	return timeline, running
}
