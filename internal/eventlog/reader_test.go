package eventlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fortresslogs/ctfround/internal/ctf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `{"map":"2fort","end_time":600}
{"line":3,"type":"PLAYER_PICKED_UP_FLAG","time":10,"from":{"id":"STEAM_0:0:1","name":"P","team":"blue"},"team":"red"}

{"line":4,"type":"PLAYER_FRAGGED_PLAYER","time":15,"from":{"id":"STEAM_0:0:2","name":"E","team":"red"},"to":{"id":"STEAM_0:0:1","name":"P","team":"blue"}}
{"line":9,"type":"TEAM_SCORE","time":600,"team":"blue","value":0}
`

func TestReadParsesHeaderEventsAndPlayers(t *testing.T) {
	round, err := Read(strings.NewReader(sampleLog))
	require.NoError(t, err)

	assert.Equal(t, "2fort", round.MapName)
	assert.Equal(t, 600, round.EndTime)
	require.Len(t, round.Events, 3)
	require.Len(t, round.Players, 2)

	pickup := round.Events[0]
	assert.Equal(t, ctf.EventPlayerPickedUpFlag, pickup.Type)
	assert.Equal(t, 3, pickup.LineNumber)
	team, ok := pickup.Team()
	require.True(t, ok)
	assert.Equal(t, ctf.TeamRed, team)

	// Same player on both events is one interned instance.
	assert.Same(t, pickup.PlayerFrom, round.Events[1].PlayerTo)

	score := round.Events[2]
	value, ok := score.Value()
	require.True(t, ok)
	assert.Equal(t, 0, value)

	state := round.State()
	assert.Equal(t, "2fort", state.MapName)
	assert.Equal(t, 600, state.RoundEndTimeInGameSeconds)
}

func TestReadDefaultsEndTimeToLastEvent(t *testing.T) {
	round, err := Read(strings.NewReader(`{"type":"PLAYER_DAMAGE","time":7}
{"type":"PLAYER_DAMAGE","time":42}`))
	require.NoError(t, err)

	assert.Equal(t, 42, round.EndTime)
	assert.Equal(t, 2, round.Events[1].LineNumber, "falls back to the file line")
}

func TestReadErrors(t *testing.T) {
	_, err := Read(strings.NewReader(`{"map":"2fort"}`))
	assert.ErrorIs(t, err, ErrEmptyLog)

	_, err = Read(strings.NewReader(`{"type":"FLAG_RETURN","time":1,"team":"purple"}`))
	assert.ErrorContains(t, err, "line 1")

	_, err = Read(strings.NewReader("not json"))
	assert.Error(t, err)

	_, err = Read(strings.NewReader(`{"type":"PLAYER_DAMAGE","time":1}
{"map":"late"}`))
	assert.ErrorContains(t, err, "header after events")
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "round.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(sampleLog), 0o644))

	round, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, round.Events, 3)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}
