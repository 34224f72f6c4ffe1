package flag

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fortresslogs/ctfround/internal/ctf"
	"go.uber.org/zap"
)

// DefaultReturnIntervalSeconds is how long a dropped flag lies before the game
// returns it to base.
const DefaultReturnIntervalSeconds = 65

var (
	// ErrAlreadyFinalized is returned when a finalized tracker is driven again.
	ErrAlreadyFinalized = errors.New("round already finalized")
	// ErrMissingRoundState is returned when round end is signalled without state.
	ErrMissingRoundState = errors.New("missing round state")
)

// Options configure a Tracker.
type Options struct {
	// ReturnInterval is the auto-return timeout in seconds.
	ReturnInterval int
	// MapReturnIntervals overrides ReturnInterval for specific maps.
	MapReturnIntervals map[string]int
	// ReferenceTeam is the team whose reported score calibrates point values.
	ReferenceTeam ctf.TeamColor
	// Points are the point values used when no score report is available.
	Points PointValues
}

// DefaultOptions returns the options for standard maps.
func DefaultOptions() Options {
	return Options{
		ReturnInterval: DefaultReturnIntervalSeconds,
		ReferenceTeam:  ctf.TeamBlue,
		Points:         DefaultPointValues(),
	}
}

// Tracker follows each team's flag through a round and, at round end, derives the
// final scores and flag movement timelines.
//
// A Tracker handles exactly one round and is not safe for concurrent use.
type Tracker struct {
	logger *zap.Logger
	opts   Options

	store     *Store
	stats     statsByTeam
	diags     diagnostics
	finalized bool

	points    PointValues
	score     ctf.ScoreMap
	movements ctf.TeamFlagMovements
}

// NewTracker creates a tracker for a new round.
func NewTracker(opts Options, logger *zap.Logger) *Tracker {
	if opts.ReturnInterval <= 0 {
		opts.ReturnInterval = DefaultReturnIntervalSeconds
	}
	if !opts.ReferenceTeam.Valid() {
		opts.ReferenceTeam = ctf.TeamBlue
	}
	t := &Tracker{
		logger: logger,
		opts:   opts,
	}
	t.Reset()
	return t
}

// Reset discards all round state so the tracker can process another round.
func (t *Tracker) Reset() {
	t.store = NewStore()
	t.stats = statsByTeam{}
	t.diags = diagnostics{logger: t.logger}
	t.finalized = false
	t.points = t.opts.Points
	t.score = ctf.ScoreMap{}
	t.movements = ctf.TeamFlagMovements{}
}

// PhaseStart is called by the dispatcher before the events of a phase.
func (t *Tracker) PhaseStart(phase ctf.Phase, state *ctf.RoundState) error {
	switch phase {
	case ctf.PhaseMain:
		return nil
	default:
		return ctf.NewLogicError(fmt.Errorf("%w: start of %s", ctf.ErrUnexpectedPhase, phase))
	}
}

// PhaseEnd is called by the dispatcher after the events of a phase. Ending the
// main phase finalizes the round.
func (t *Tracker) PhaseEnd(phase ctf.Phase, state *ctf.RoundState) error {
	switch phase {
	case ctf.PhaseMain:
		if t.finalized {
			return ctf.NewLogicError(ErrAlreadyFinalized)
		}
		if state == nil {
			return ctf.NewLogicError(ErrMissingRoundState)
		}
		t.finalize(state.RoundEndTimeInGameSeconds)
		return nil
	default:
		return ctf.NewLogicError(fmt.Errorf("%w: end of %s", ctf.ErrUnexpectedPhase, phase))
	}
}

// HandleEvent applies one event to the flag state.
func (t *Tracker) HandleEvent(ev *ctf.Event, phase ctf.Phase, state *ctf.RoundState) (ctf.HandlerRequest, error) {
	switch phase {
	case ctf.PhaseMain:
		if t.finalized {
			return ctf.HandlerRequestNone, ctf.NewLogicError(ErrAlreadyFinalized)
		}
		if err := t.handleMainEvent(ev, state); err != nil {
			return ctf.HandlerRequestNone, err
		}
	case ctf.PhasePostMain:
	default:
		return ctf.HandlerRequestNone, ctf.NewLogicError(fmt.Errorf("%w: event in %s", ctf.ErrUnexpectedPhase, phase))
	}
	return ctf.HandlerRequestNone, nil
}

func (t *Tracker) handleMainEvent(ev *ctf.Event, state *ctf.RoundState) error {
	if ev.PlayerFrom != nil && ev.PlayerFrom.CurrentStatus.CarryingFlag {
		ev.PlayerFromWasCarryingFlag = true
	}
	if ev.PlayerTo != nil && ev.PlayerTo.CurrentStatus.CarryingFlag {
		ev.PlayerToWasCarryingFlag = true
	}

	t.expireDroppedFlags(ev, state)

	switch ev.Type {
	case ctf.EventTeamFlagHoldBonus:
		t.handleHoldBonus(ev)
	case ctf.EventTeamScore:
		return t.handleTeamScore(ev)
	case ctf.EventPlayerPickedUpFlag:
		t.handlePickup(ev)
	case ctf.EventPlayerPickedUpBonusFlag:
		t.handleBonusPickup(ev)
	case ctf.EventFlagReturn:
		if team, ok := ev.Team(); ok && team.Valid() {
			t.store.Reset(team)
		} else {
			t.store.ResetAll()
		}
	default:
		switch {
		case ev.Type.IsFlagDrop():
			t.handleDrop(ev)
		case ev.Type.IsCapture():
			t.handleCapture(ev)
		}
	}
	return nil
}

// expireDroppedFlags assumes the game returned flags that have been lying
// dropped for longer than the return interval.
func (t *Tracker) expireDroppedFlags(ev *ctf.Event, state *ctf.RoundState) {
	expired := t.store.expireDropped(ev.GameTime, t.returnInterval(state))
	if t.logger == nil {
		return
	}
	for _, team := range expired {
		t.logger.Debug("assuming dropped flag returned",
			zap.Stringer("team", team),
			zap.Int("game_time", ev.GameTime),
		)
	}
}

func (t *Tracker) returnInterval(state *ctf.RoundState) int {
	if state != nil {
		for _, name := range []string{state.MapName, strings.ToLower(state.MapName)} {
			if interval, ok := t.opts.MapReturnIntervals[name]; ok && interval > 0 {
				return interval
			}
		}
	}
	return t.opts.ReturnInterval
}

func (t *Tracker) handleHoldBonus(ev *ctf.Event) {
	team, ok := t.requireTeam(ev)
	if !ok {
		return
	}
	t.stats[team].HoldBonusCount++
	t.stats[team].record(ev)
}

func (t *Tracker) handleTeamScore(ev *ctf.Event) error {
	team, ok := ev.Team()
	if !ok {
		return ctf.NewParsingError(ev.LineNumber, fmt.Errorf("team score event: %w", ctf.ErrMissingTeam))
	}
	value, ok := ev.Value()
	if !ok {
		return ctf.NewParsingError(ev.LineNumber, fmt.Errorf("team score event: %w", ctf.ErrMissingValue))
	}
	if !team.Valid() {
		return ctf.NewParsingError(ev.LineNumber, fmt.Errorf("team score event: invalid team %d", team))
	}
	t.stats[team].ReportedScore = &value
	return nil
}

func (t *Tracker) handlePickup(ev *ctf.Event) {
	team, ok := t.requireTeam(ev)
	if !ok {
		return
	}
	player, ok := t.requirePlayer(ev, ev.PlayerFrom)
	if !ok {
		return
	}

	t.statsFor(player.Team).record(ev)

	player.CurrentStatus.CarryingFlag = true
	player.RoundStats.FlagCarries++
	if firstTouch := t.store.pickUp(team, player, ev.GameTime); firstTouch {
		player.RoundStats.FlagInitialTouches++
	}
}

func (t *Tracker) handleBonusPickup(ev *ctf.Event) {
	team, ok := t.requireTeam(ev)
	if !ok {
		return
	}
	status := t.store.Get(team)
	if status.Carrier == nil || !status.Carrier.IsSamePlayer(ev.PlayerFrom) {
		msg := fmt.Sprintf("bonus flag pickup seen by a player (%s) which wasn't carrying the flag (was carried by %s)",
			ev.PlayerFrom.DisplayName(), status.Carrier.DisplayName())
		t.diags.emit(Diagnostic{
			Kind:       DiagnosticBonusPickupWithoutCarrier,
			Message:    msg,
			LineNumber: ev.LineNumber,
			GameTime:   ev.GameTime,
			Player:     ev.PlayerFrom.DisplayName(),
			Team:       team,
		})
		return
	}
	t.store.activateBonus(team)
	ev.PlayerFrom.CurrentStatus.CarryingFlagBonus = true
}

func (t *Tracker) handleDrop(ev *ctf.Event) {
	dropper, ok := t.requirePlayer(ev, droppingPlayer(ev))
	if !ok {
		return
	}

	dropper.CurrentStatus.CarryingFlag = false
	dropper.CurrentStatus.CarryingFlagBonus = false
	if ev.Type == ctf.EventPlayerThrewFlag {
		dropper.RoundStats.FlagThrows++
	}

	for _, team := range t.store.CarriedBy(dropper) {
		t.statsFor(dropper.Team).record(ev)
		t.store.CreditOpenCarry(team, ev.GameTime)
		t.store.drop(team, ev.GameTime)
	}
}

func (t *Tracker) handleCapture(ev *ctf.Event) {
	capper, ok := t.requirePlayer(ev, ev.PlayerFrom)
	if !ok {
		return
	}

	capper.CurrentStatus.CarryingFlag = false
	capper.CurrentStatus.CarryingFlagBonus = false

	teams := t.store.CarriedBy(capper)
	if len(teams) == 0 {
		t.diags.emit(Diagnostic{
			Kind:       DiagnosticCaptureWithoutCarrier,
			Message:    fmt.Sprintf("flag capture seen by a player (%s) which wasn't carrying the flag", capper.Name),
			LineNumber: ev.LineNumber,
			GameTime:   ev.GameTime,
			Player:     capper.Name,
			Team:       capper.Team,
		})
		return
	}

	// TODO: decide whether a capture matching several flags should score once per
	// flag; until then the first matching team wins.
	team := teams[0]
	for _, other := range teams[1:] {
		t.diags.emit(Diagnostic{
			Kind:       DiagnosticCaptureMultipleCarriers,
			Message:    fmt.Sprintf("flag capture for player (%s) was while carrying the flag of multiple teams", capper.Name),
			LineNumber: ev.LineNumber,
			GameTime:   ev.GameTime,
			Player:     capper.Name,
			Team:       other,
		})
	}

	stats := t.statsFor(capper.Team)
	recorded := *ev
	if t.store.Get(team).BonusActive || ev.Type == ctf.EventPlayerCapturedBonusFlag {
		recorded.Type = ctf.EventPlayerCapturedBonusFlag
		stats.BonusCapCount++
	}
	stats.CapCount++
	stats.record(&recorded)

	capper.RoundStats.FlagCaptures++
	t.store.CreditOpenCarry(team, ev.GameTime)
	t.store.Reset(team)
}

// finalize credits flags still carried at round end, then computes scores and
// movement timelines.
func (t *Tracker) finalize(roundEnd int) {
	for _, team := range ctf.AllTeams {
		if t.store.Get(team).State() == StateCarried {
			t.store.CreditOpenCarry(team, roundEnd)
		}
	}
	t.store.ResetAll()

	t.points = estimatePointValues(t.opts.Points, &t.stats, t.opts.ReferenceTeam, &t.diags)
	t.score, t.movements = buildTimelines(&t.stats, t.points)
	t.finalized = true

	if t.logger != nil {
		t.logger.Debug("flag round finalized",
			zap.Int("round_end", roundEnd),
			zap.Float64("points_per_cap", t.points.Cap),
			zap.Float64("points_per_bonus_cap", t.points.BonusCap),
			zap.Int("diagnostics", len(t.diags.items)),
		)
	}
}

// statsFor returns the accumulator of a player's team. Players with an unknown
// team are counted under TeamNone.
func (t *Tracker) statsFor(team ctf.TeamColor) *RoundStats {
	if !team.Valid() {
		team = ctf.TeamNone
	}
	return &t.stats[team]
}

func (t *Tracker) requireTeam(ev *ctf.Event) (ctf.TeamColor, bool) {
	team, ok := ev.Team()
	if ok && team.Valid() {
		return team, true
	}
	t.diags.emit(Diagnostic{
		Kind:       DiagnosticMissingTeamData,
		Message:    fmt.Sprintf("%s event without a valid team", ev.Type),
		LineNumber: ev.LineNumber,
		GameTime:   ev.GameTime,
		Player:     ev.PlayerFrom.DisplayName(),
	})
	return ctf.TeamNone, false
}

func (t *Tracker) requirePlayer(ev *ctf.Event, player *ctf.Player) (*ctf.Player, bool) {
	if player != nil {
		return player, true
	}
	t.diags.emit(Diagnostic{
		Kind:       DiagnosticMissingPlayer,
		Message:    fmt.Sprintf("%s event without a player", ev.Type),
		LineNumber: ev.LineNumber,
		GameTime:   ev.GameTime,
	})
	return nil, false
}

// droppingPlayer returns the player who loses the flag in a drop event: the
// thrower, or the victim of a frag, suicide or disconnect.
func droppingPlayer(ev *ctf.Event) *ctf.Player {
	if ev.Type == ctf.EventPlayerThrewFlag || ev.PlayerTo == nil {
		return ev.PlayerFrom
	}
	return ev.PlayerTo
}

// Finalized reports whether the round has ended and outputs are available.
func (t *Tracker) Finalized() bool {
	return t.finalized
}

// Score returns the final score of each team. Valid after the main phase ended.
func (t *Tracker) Score() ctf.ScoreMap {
	return t.score
}

// Movements returns a copy of each team's flag timeline. Valid after the main
// phase ended.
func (t *Tracker) Movements() ctf.TeamFlagMovements {
	var out ctf.TeamFlagMovements
	for i, timeline := range t.movements {
		if timeline != nil {
			out[i] = append([]ctf.FlagMovement(nil), timeline...)
		}
	}
	return out
}

// ScoreReported reports whether the log carried an authoritative score for any
// team. When false the scores were derived by replay alone.
func (t *Tracker) ScoreReported() bool {
	return t.stats.sawReportedScore()
}

// PointValues returns the point values used for the replay.
func (t *Tracker) PointValues() PointValues {
	return t.points
}

// Diagnostics returns the non-fatal findings recorded so far, in order.
func (t *Tracker) Diagnostics() []Diagnostic {
	return t.diags.list()
}

// FlagStatus returns the current status of a team's flag.
func (t *Tracker) FlagStatus(team ctf.TeamColor) Status {
	return t.store.Get(team)
}

// RoundStats returns a copy of a team's round counters.
func (t *Tracker) RoundStats(team ctf.TeamColor) RoundStats {
	rs := t.stats[team]
	rs.Events = append([]ctf.Event(nil), rs.Events...)
	return rs
}
