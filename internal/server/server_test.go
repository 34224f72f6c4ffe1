package server

import (
	"testing"

	"github.com/fortresslogs/ctfround/internal/ctf"
	"github.com/fortresslogs/ctfround/internal/ctf/flag"
	"github.com/fortresslogs/ctfround/internal/report"
	"github.com/stretchr/testify/require"
)

// newTestReport analyses a one-capture round on mapName.
func newTestReport(t *testing.T, mapName string) *report.Report {
	t.Helper()
	state := &ctf.RoundState{MapName: mapName, RoundEndTimeInGameSeconds: 300}
	p := ctf.NewPlayer("STEAM_0:0:7", "Runner", ctf.TeamRed)

	tracker := flag.NewTracker(flag.DefaultOptions(), nil)
	require.NoError(t, tracker.PhaseStart(ctf.PhaseMain, state))
	for _, ev := range []*ctf.Event{
		ctf.NewEvent(ctf.EventPlayerPickedUpFlag, 5, p, nil).WithTeam(ctf.TeamBlue),
		ctf.NewEvent(ctf.EventPlayerCapturedFlag, 25, p, nil),
	} {
		_, err := tracker.HandleEvent(ev, ctf.PhaseMain, state)
		require.NoError(t, err)
	}
	require.NoError(t, tracker.PhaseEnd(ctf.PhaseMain, state))

	r, err := report.New(state, []*ctf.Player{p}, tracker)
	require.NoError(t, err)
	return r
}
