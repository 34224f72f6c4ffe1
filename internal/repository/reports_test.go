package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fortresslogs/ctfround/internal/config"
	"github.com/fortresslogs/ctfround/internal/ctf"
	"github.com/fortresslogs/ctfround/internal/ctf/flag"
	"github.com/fortresslogs/ctfround/internal/report"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// testRepository connects to the database named by CTFROUND_TEST_DATABASE_URL.
func testRepository(t *testing.T) *ReportRepository {
	t.Helper()
	url := os.Getenv("CTFROUND_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CTFROUND_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := NewDB(ctx, config.DatabaseConfig{URL: url, ConnectTimeout: 5 * time.Second}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	return NewReportRepository(pool, zaptest.NewLogger(t))
}

func sampleReport(t *testing.T) *report.Report {
	t.Helper()
	state := &ctf.RoundState{MapName: "2fort", RoundEndTimeInGameSeconds: 600}
	p := ctf.NewPlayer("STEAM_0:0:1", "Runner", ctf.TeamBlue)

	tracker := flag.NewTracker(flag.DefaultOptions(), nil)
	require.NoError(t, tracker.PhaseStart(ctf.PhaseMain, state))
	for _, ev := range []*ctf.Event{
		ctf.NewEvent(ctf.EventPlayerPickedUpFlag, 10, p, nil).WithTeam(ctf.TeamRed),
		ctf.NewEvent(ctf.EventPlayerCapturedFlag, 40, p, nil),
		ctf.NewEvent(ctf.EventTeamScore, 600, nil, nil).WithTeam(ctf.TeamBlue).WithValue(10),
	} {
		_, err := tracker.HandleEvent(ev, ctf.PhaseMain, state)
		require.NoError(t, err)
	}
	require.NoError(t, tracker.PhaseEnd(ctf.PhaseMain, state))

	r, err := report.New(state, []*ctf.Player{p}, tracker)
	require.NoError(t, err)
	return r
}

func TestNewDBRejectsBadURL(t *testing.T) {
	_, err := NewDB(context.Background(), config.DatabaseConfig{URL: "://not a url"}, nil)
	assert.Error(t, err)
}

func TestSaveAndReadBack(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()
	r := sampleReport(t)

	require.NoError(t, repo.Save(ctx, r))
	// saving again replaces the stored copy
	require.NoError(t, repo.Save(ctx, r))

	summary, err := repo.Round(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "2fort", summary.MapName)
	assert.Equal(t, ctf.TeamBlue, summary.Winner)
	assert.Equal(t, r.Checksum, summary.Checksum)
	assert.False(t, summary.ScoredByReplay)

	scores, err := repo.Scores(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.Scores, scores)
}

func TestUnknownRound(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	_, err := repo.Round(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrReportNotFound)

	_, err = repo.Scores(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrReportNotFound)
}
