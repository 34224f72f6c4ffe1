// Package eventlog reads parsed round logs stored as JSON lines.
//
// The first line may be a round header:
//
//	{"map":"2fort","end_time":1200}
//
// Every other line is one event:
//
//	{"line":42,"type":"PLAYER_PICKED_UP_FLAG","time":95,"from":{"id":"STEAM_0:0:1","name":"P","team":"blue"},"team":"red"}
package eventlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fortresslogs/ctfround/internal/ctf"
)

// maxLineSize bounds a single log line.
const maxLineSize = 1 << 20

// ErrEmptyLog is returned for a log without events.
var ErrEmptyLog = errors.New("round log has no events")

// Round is one parsed round: its events in log order and the players they refer to.
type Round struct {
	MapName string
	EndTime int
	Events  []*ctf.Event
	Players []*ctf.Player
}

// State returns the round-lifecycle state handed to trackers.
func (r *Round) State() *ctf.RoundState {
	return &ctf.RoundState{
		MapName:                   r.MapName,
		RoundEndTimeInGameSeconds: r.EndTime,
	}
}

type headerRecord struct {
	Map     string `json:"map"`
	EndTime *int   `json:"end_time"`
}

type playerRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Team string `json:"team"`
}

type eventRecord struct {
	Line  int           `json:"line"`
	Type  ctf.EventType `json:"type"`
	Time  int           `json:"time"`
	From  *playerRecord `json:"from"`
	To    *playerRecord `json:"to"`
	Team  *string       `json:"team"`
	Value *int          `json:"value"`
}

// ReadFile reads a round log from disk.
func ReadFile(path string) (*Round, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open round log: %w", err)
	}
	defer f.Close()

	round, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return round, nil
}

// Read parses a round log. Players are interned so every event that refers to the
// same player shares one *ctf.Player.
func Read(r io.Reader) (*Round, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	round := &Round{}
	players := newPlayerTable()
	var endTime *int
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec eventRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		if rec.Type == "" {
			var header headerRecord
			if err := json.Unmarshal(line, &header); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if len(round.Events) > 0 {
				return nil, fmt.Errorf("line %d: round header after events", lineNo)
			}
			round.MapName = header.Map
			endTime = header.EndTime
			continue
		}

		ev, err := rec.toEvent(players)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if ev.LineNumber == 0 {
			ev.LineNumber = lineNo
		}
		round.Events = append(round.Events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read round log: %w", err)
	}
	if len(round.Events) == 0 {
		return nil, ErrEmptyLog
	}

	if endTime != nil {
		round.EndTime = *endTime
	} else {
		round.EndTime = round.Events[len(round.Events)-1].GameTime
	}
	round.Players = players.list()
	return round, nil
}

func (rec *eventRecord) toEvent(players *playerTable) (*ctf.Event, error) {
	from, err := players.resolve(rec.From)
	if err != nil {
		return nil, err
	}
	to, err := players.resolve(rec.To)
	if err != nil {
		return nil, err
	}

	ev := ctf.NewEvent(rec.Type, rec.Time, from, to)
	ev.LineNumber = rec.Line
	if rec.Team != nil {
		team, err := ctf.ParseTeamColor(*rec.Team)
		if err != nil {
			return nil, err
		}
		ev.WithTeam(team)
	}
	if rec.Value != nil {
		ev.WithValue(*rec.Value)
	}
	return ev, nil
}

// playerTable interns players by ID, or by name for players without an ID.
type playerTable struct {
	byKey map[string]*ctf.Player
	order []*ctf.Player
}

func newPlayerTable() *playerTable {
	return &playerTable{byKey: make(map[string]*ctf.Player)}
}

func (pt *playerTable) resolve(rec *playerRecord) (*ctf.Player, error) {
	if rec == nil {
		return nil, nil
	}
	team, err := ctf.ParseTeamColor(rec.Team)
	if err != nil {
		return nil, err
	}

	key := "id:" + rec.ID
	if rec.ID == "" {
		key = "name:" + rec.Name
	}
	if p, ok := pt.byKey[key]; ok {
		// Players rename and switch teams mid-round; the latest record wins.
		p.Name = rec.Name
		p.Team = team
		return p, nil
	}

	p := ctf.NewPlayer(rec.ID, rec.Name, team)
	pt.byKey[key] = p
	pt.order = append(pt.order, p)
	return p, nil
}

func (pt *playerTable) list() []*ctf.Player {
	return append([]*ctf.Player(nil), pt.order...)
}
