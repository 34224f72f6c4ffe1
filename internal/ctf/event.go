package ctf

// EventType indicates the kind of a parsed log event.
type EventType string

const (
	// Flag events
	EventPlayerPickedUpFlag      EventType = "PLAYER_PICKED_UP_FLAG"
	EventPlayerPickedUpBonusFlag EventType = "PLAYER_PICKED_UP_BONUS_FLAG"
	EventPlayerThrewFlag         EventType = "PLAYER_THREW_FLAG"
	EventPlayerCapturedFlag      EventType = "PLAYER_CAPTURED_FLAG"
	EventPlayerCapturedBonusFlag EventType = "PLAYER_CAPTURED_BONUS_FLAG"
	EventFlagReturn              EventType = "FLAG_RETURN"
	EventTeamFlagHoldBonus       EventType = "TEAM_FLAG_HOLD_BONUS"

	// Score events
	EventTeamScore EventType = "TEAM_SCORE"

	// Player events that can drop a carried flag
	EventPlayerFraggedPlayer EventType = "PLAYER_FRAGGED_PLAYER"
	EventPlayerCommitSuicide EventType = "PLAYER_COMMIT_SUICIDE"
	EventPlayerLeftServer    EventType = "PLAYER_LEFT_SERVER"

	// Other events seen in round logs
	EventPlayerJoinedServer EventType = "PLAYER_JOINED_SERVER"
	EventPlayerJoinedTeam   EventType = "PLAYER_JOINED_TEAM"
	EventPlayerChangeRole   EventType = "PLAYER_CHANGE_ROLE"
	EventPlayerDamage       EventType = "PLAYER_DAMAGE"
	EventPlayerMM1          EventType = "PLAYER_MM1"
	EventPlayerMM2          EventType = "PLAYER_MM2"
	EventPrematchEnd        EventType = "PREMATCH_END"
	EventRoundEnd           EventType = "ROUND_END"
)

// IsFlagDrop returns true for events that take a flag away from its carrier
// without scoring.
func (et EventType) IsFlagDrop() bool {
	switch et {
	case EventPlayerThrewFlag, EventPlayerFraggedPlayer, EventPlayerCommitSuicide, EventPlayerLeftServer:
		return true
	default:
		return false
	}
}

// IsCapture returns true for normal and bonus captures.
func (et EventType) IsCapture() bool {
	return et == EventPlayerCapturedFlag || et == EventPlayerCapturedBonusFlag
}

// EventData is the optional {team, value} payload of an event.
type EventData struct {
	Team  *TeamColor
	Value *int
}

// Event is a single parsed log line, in round-relative chronological order.
type Event struct {
	Type       EventType
	LineNumber int
	GameTime   int // seconds since round start
	PlayerFrom *Player
	PlayerTo   *Player
	Data       *EventData

	// Annotations written by the flag tracker for other trackers.
	PlayerFromWasCarryingFlag bool
	PlayerToWasCarryingFlag   bool
}

// NewEvent creates an event of the given type at a game time.
func NewEvent(eventType EventType, gameTime int, from, to *Player) *Event {
	return &Event{
		Type:       eventType,
		GameTime:   gameTime,
		PlayerFrom: from,
		PlayerTo:   to,
	}
}

// WithTeam attaches a team payload and returns the event.
func (e *Event) WithTeam(team TeamColor) *Event {
	if e.Data == nil {
		e.Data = &EventData{}
	}
	e.Data.Team = &team
	return e
}

// WithValue attaches a value payload and returns the event.
func (e *Event) WithValue(value int) *Event {
	if e.Data == nil {
		e.Data = &EventData{}
	}
	e.Data.Value = &value
	return e
}

// Team returns the team payload, if any.
func (e *Event) Team() (TeamColor, bool) {
	if e.Data == nil || e.Data.Team == nil {
		return TeamNone, false
	}
	return *e.Data.Team, true
}

// Value returns the value payload, if any.
func (e *Event) Value() (int, bool) {
	if e.Data == nil || e.Data.Value == nil {
		return 0, false
	}
	return *e.Data.Value, true
}

// Phase is a stage of round processing driven by the dispatcher.
type Phase int

const (
	PhaseMain Phase = iota
	PhasePostMain
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseMain:
		return "MAIN"
	case PhasePostMain:
		return "POST_MAIN"
	default:
		return "UNKNOWN"
	}
}

// HandlerRequest is returned by subscribers to ask the dispatcher for follow-up
// work after an event.
type HandlerRequest int

const (
	HandlerRequestNone HandlerRequest = iota
)
