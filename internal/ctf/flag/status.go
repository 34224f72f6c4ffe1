package flag

import "github.com/fortresslogs/ctfround/internal/ctf"

// State is the derived state of a team's flag.
type State int

const (
	// StateIdle means the flag is at base.
	StateIdle State = iota
	// StateCarried means a player holds the flag.
	StateCarried
	// StateDroppedPendingReturn means the flag lies dropped, awaiting a return or
	// the auto-return timeout.
	StateDroppedPendingReturn
)

// String returns the string representation of the flag state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateCarried:
		return "CARRIED"
	case StateDroppedPendingReturn:
		return "DROPPED_PENDING_RETURN"
	default:
		return "UNKNOWN"
	}
}

// Status records who holds a team's flag and since when.
//
// A Status with a carrier always has a pickup time and no drop time. A Status
// without a carrier but with a drop time is a dropped flag.
type Status struct {
	Carrier        *ctf.Player
	PickupTime     *int
	DropTime       *int
	BonusActive    bool
	HasBeenTouched bool
}

// State derives the flag state from the status fields.
func (s Status) State() State {
	switch {
	case s.Carrier != nil:
		return StateCarried
	case s.DropTime != nil:
		return StateDroppedPendingReturn
	default:
		return StateIdle
	}
}

// Store holds the flag status of every team.
type Store struct {
	statuses [ctf.TeamCount]Status
}

// NewStore creates a store with every flag at base.
func NewStore() *Store {
	s := &Store{}
	s.ResetAll()
	return s
}

// Get returns a copy of a team's flag status.
func (s *Store) Get(team ctf.TeamColor) Status {
	return s.statuses[team]
}

// Reset swaps in a fresh status for a team.
func (s *Store) Reset(team ctf.TeamColor) {
	s.statuses[team] = Status{}
}

// ResetAll swaps in a fresh status for every team.
func (s *Store) ResetAll() {
	for _, team := range ctf.AllTeams {
		s.Reset(team)
	}
}

// CarriedBy returns the teams whose flag is held by player, in team order.
func (s *Store) CarriedBy(player *ctf.Player) []ctf.TeamColor {
	var teams []ctf.TeamColor
	for _, team := range ctf.AllTeams {
		if player.IsSamePlayer(s.statuses[team].Carrier) {
			teams = append(teams, team)
		}
	}
	return teams
}

// CreditOpenCarry adds the time since pickup, up to endTime, to the carrier's
// accumulated carry time. It returns the credited seconds; nothing is credited
// when the flag is not carried.
func (s *Store) CreditOpenCarry(team ctf.TeamColor, endTime int) int {
	status := s.statuses[team]
	if status.Carrier == nil || status.PickupTime == nil {
		return 0
	}
	held := endTime - *status.PickupTime
	if held < 0 {
		held = 0
	}
	status.Carrier.RoundStats.FlagCarryTimeInSeconds += held
	return held
}

// pickUp records player taking a team's flag at gameTime. It reports whether this
// was the first touch of the flag in the round.
func (s *Store) pickUp(team ctf.TeamColor, player *ctf.Player, gameTime int) bool {
	prev := s.statuses[team]
	s.statuses[team] = Status{
		Carrier:        player,
		PickupTime:     &gameTime,
		HasBeenTouched: true,
	}
	return !prev.HasBeenTouched
}

// drop clears the carrier of a team's flag and marks it as lying dropped.
func (s *Store) drop(team ctf.TeamColor, gameTime int) {
	prev := s.statuses[team]
	s.statuses[team] = Status{
		DropTime:       &gameTime,
		HasBeenTouched: prev.HasBeenTouched,
	}
}

// activateBonus marks the carried flag of a team as a bonus flag.
func (s *Store) activateBonus(team ctf.TeamColor) {
	s.statuses[team].BonusActive = true
}

// expireDropped resets every dropped flag that has been lying for longer than
// interval seconds at gameTime. It returns the teams that were reset.
func (s *Store) expireDropped(gameTime, interval int) []ctf.TeamColor {
	var expired []ctf.TeamColor
	for _, team := range ctf.AllTeams {
		status := s.statuses[team]
		if status.State() != StateDroppedPendingReturn {
			continue
		}
		if gameTime-*status.DropTime > interval {
			s.Reset(team)
			expired = append(expired, team)
		}
	}
	return expired
}
