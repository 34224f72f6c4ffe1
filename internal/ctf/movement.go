package ctf

// FlagMovementType is the kind of a flag timeline entry.
type FlagMovementType string

const (
	FlagMovementPickup   FlagMovementType = "pickup"
	FlagMovementThrown   FlagMovementType = "thrown"
	FlagMovementDropped  FlagMovementType = "dropped"
	FlagMovementReturned FlagMovementType = "returned"
	FlagMovementFragged  FlagMovementType = "fragged"
	FlagMovementCaptured FlagMovementType = "captured"
)

// TeamCarrier is the carrier name used for team-level score entries such as
// flag hold bonuses.
const TeamCarrier = "<Team>"

// FlagMovement is one entry of a team's flag timeline.
type FlagMovement struct {
	Type         FlagMovementType `json:"type"`
	Carrier      string           `json:"carrier,omitempty"`
	Fragger      string           `json:"fragger,omitempty"`
	RunningScore float64          `json:"current_score"`
	GameTime     int              `json:"game_time_as_seconds"`
}

// TeamFlagMovements holds the flag timeline of each team. A nil entry means the
// team had no flag activity in the round.
type TeamFlagMovements [TeamCount][]FlagMovement
