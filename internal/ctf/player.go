package ctf

// PlayerStatus is the live, mutable state of a player during a round.
type PlayerStatus struct {
	CarryingFlag      bool
	CarryingFlagBonus bool
}

// PlayerRoundStats are the per-round flag counters of a player.
type PlayerRoundStats struct {
	FlagCarries            int
	FlagInitialTouches     int
	FlagThrows             int
	FlagCaptures           int
	FlagCarryTimeInSeconds int
}

// Player is a participant as seen by round trackers. The same logical player may
// be represented by more than one *Player; compare with IsSamePlayer.
type Player struct {
	ID   string // stable identity, e.g. a Steam ID
	Name string
	Team TeamColor

	CurrentStatus PlayerStatus
	RoundStats    PlayerRoundStats
}

// NewPlayer creates a player on the given team.
func NewPlayer(id, name string, team TeamColor) *Player {
	return &Player{
		ID:   id,
		Name: name,
		Team: team,
	}
}

// IsSamePlayer reports whether other refers to the same logical player. A nil
// receiver or argument never matches. Players are matched by ID; when either side
// has no ID the names are compared instead.
func (p *Player) IsSamePlayer(other *Player) bool {
	if p == nil || other == nil {
		return false
	}
	if p.ID != "" && other.ID != "" {
		return p.ID == other.ID
	}
	return p.Name == other.Name
}

// DisplayName returns the player's name, or "<unknown>" for a nil player.
func (p *Player) DisplayName() string {
	if p == nil {
		return "<unknown>"
	}
	return p.Name
}

// ResetRound clears the per-round status and counters.
func (p *Player) ResetRound() {
	p.CurrentStatus = PlayerStatus{}
	p.RoundStats = PlayerRoundStats{}
}
