package analysis

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fortresslogs/ctfround/internal/ctf"
	"github.com/fortresslogs/ctfround/internal/ctf/flag"
	"github.com/fortresslogs/ctfround/internal/eventlog"
	"github.com/fortresslogs/ctfround/internal/report"
	"github.com/fortresslogs/ctfround/internal/round"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestAnalyzeFile(t *testing.T) {
	a := New(flag.DefaultOptions(), zaptest.NewLogger(t))

	var published []*report.Report
	a.Bus().Subscribe("collect", func(_ context.Context, r *report.Report) error {
		published = append(published, r)
		return nil
	})

	r, err := a.AnalyzeFile(context.Background(), filepath.Join("testdata", "2fort.jsonl"))
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Same(t, r, published[0])

	assert.Equal(t, "2fort", r.MapName)
	assert.Equal(t, 600, r.RoundEnd)
	assert.False(t, r.ScoredByReplay)
	assert.Equal(t, 10, r.Scores.Get(ctf.TeamBlue))
	assert.Equal(t, 0, r.Scores.Get(ctf.TeamRed))
	assert.Equal(t, ctf.TeamBlue, r.Winner())
	assert.Equal(t, float64(10), r.PointValues.Cap)
	assert.Empty(t, r.Diagnostics)

	assert.Equal(t, []ctf.FlagMovement{
		{Type: ctf.FlagMovementPickup, Carrier: "Runner", RunningScore: 0, GameTime: 10},
		{Type: ctf.FlagMovementCaptured, Carrier: "Runner", RunningScore: 10, GameTime: 40},
	}, r.Movements[ctf.TeamBlue])
	assert.Equal(t, []ctf.FlagMovement{
		{Type: ctf.FlagMovementPickup, Carrier: "Sentry", RunningScore: 0, GameTime: 50},
		{Type: ctf.FlagMovementFragged, Carrier: "Sentry", Fragger: "Runner", RunningScore: 0, GameTime: 60},
	}, r.Movements[ctf.TeamRed])

	require.Len(t, r.Players, 2)
	runner, sentry := r.Players[0], r.Players[1]
	assert.Equal(t, "Runner", runner.Name)
	assert.Equal(t, 1, runner.Captures)
	assert.Equal(t, 30, runner.CarryTimeSeconds)
	assert.Equal(t, "Sentry", sentry.Name)
	assert.Equal(t, 10, sentry.CarryTimeSeconds)
	assert.Equal(t, 1, sentry.InitialTouches)
}

func TestAnalyzeResetsPlayerCounters(t *testing.T) {
	a := New(flag.DefaultOptions(), nil)

	rnd, err := eventlog.ReadFile(filepath.Join("testdata", "2fort.jsonl"))
	require.NoError(t, err)

	first, err := a.Analyze(context.Background(), rnd)
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), rnd)
	require.NoError(t, err)

	assert.Equal(t, first.Players, second.Players)
	assert.Equal(t, first.Checksum, second.Checksum)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestAnalyzeSurfacesFatalErrors(t *testing.T) {
	const log = `{"map":"2fort"}
{"type":"TEAM_SCORE","time":600,"team":"blue"}
`
	rnd, err := eventlog.Read(strings.NewReader(log))
	require.NoError(t, err)

	_, err = New(flag.DefaultOptions(), nil).Analyze(context.Background(), rnd)
	require.Error(t, err)
	assert.ErrorIs(t, err, ctf.ErrMissingValue)
}

func TestAnalyzeRejectsOutOfOrderEvents(t *testing.T) {
	const log = `{"type":"PLAYER_DAMAGE","time":100}
{"type":"PLAYER_DAMAGE","time":50}
`
	rnd, err := eventlog.Read(strings.NewReader(log))
	require.NoError(t, err)

	_, err = New(flag.DefaultOptions(), nil).Analyze(context.Background(), rnd)
	assert.ErrorIs(t, err, round.ErrOutOfOrder)
}

func TestAnalyzeFileMissing(t *testing.T) {
	_, err := New(flag.DefaultOptions(), nil).AnalyzeFile(context.Background(), filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}

func TestBusPublishContinuesAfterFailure(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t))
	boom := errors.New("boom")

	var calls []string
	bus.Subscribe("first", func(context.Context, *report.Report) error {
		calls = append(calls, "first")
		return boom
	})
	handle := bus.Subscribe("second", func(context.Context, *report.Report) error {
		calls = append(calls, "second")
		return nil
	})
	bus.Subscribe("third", func(context.Context, *report.Report) error {
		calls = append(calls, "third")
		return nil
	})
	assert.Equal(t, -1, bus.Subscribe("nil", nil))

	err := bus.Publish(context.Background(), &report.Report{})
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "first")
	assert.Equal(t, []string{"first", "second", "third"}, calls)

	calls = nil
	bus.Unsubscribe(handle)
	_ = bus.Publish(context.Background(), &report.Report{})
	assert.Equal(t, []string{"first", "third"}, calls)
}
