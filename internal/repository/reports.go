package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fortresslogs/ctfround/internal/ctf"
	"github.com/fortresslogs/ctfround/internal/report"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrReportNotFound is returned when no round exists for an ID.
var ErrReportNotFound = errors.New("report not found")

// RoundSummary is the stored header of an analysed round.
type RoundSummary struct {
	ID             uuid.UUID
	MapName        string
	RoundEnd       int
	ScoredByReplay bool
	Winner         ctf.TeamColor
	Checksum       string
}

// ReportRepository persists reports.
type ReportRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewReportRepository creates a repository backed by pool.
func NewReportRepository(pool *pgxpool.Pool, logger *zap.Logger) *ReportRepository {
	return &ReportRepository{pool: pool, logger: logger}
}

// Save stores a report in one transaction. Saving the same report twice replaces
// the earlier copy.
func (r *ReportRepository) Save(ctx context.Context, rep *report.Report) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM rounds WHERE id = $1`, rep.ID); err != nil {
		return fmt.Errorf("failed to replace round: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO rounds (
			id, map_name, round_end, analyzed_at, points_per_cap,
			points_per_bonus, scored_by_replay, winner, checksum
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		rep.ID,
		rep.MapName,
		rep.RoundEnd,
		rep.AnalyzedAt,
		rep.PointValues.Cap,
		rep.PointValues.BonusCap,
		rep.ScoredByReplay,
		rep.Winner().String(),
		rep.Checksum,
	)
	if err != nil {
		return fmt.Errorf("failed to insert round: %w", err)
	}

	batch := &pgx.Batch{}
	for _, team := range ctf.AllTeams {
		batch.Queue(`INSERT INTO round_scores (round_id, team, score) VALUES ($1, $2, $3)`,
			rep.ID, team.String(), rep.Scores[team])

		for seq, m := range rep.Movements[team] {
			batch.Queue(`
				INSERT INTO flag_movements (
					round_id, team, seq, movement, carrier, fragger, current_score, game_time
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`,
				rep.ID, team.String(), seq, string(m.Type), m.Carrier, m.Fragger, m.RunningScore, m.GameTime)
		}
	}
	for _, p := range rep.Players {
		batch.Queue(`
			INSERT INTO player_flag_stats (
				round_id, player_id, player_name, team, carries,
				initial_touches, throws, captures, carry_seconds
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			rep.ID, p.ID, p.Name, p.Team.String(), p.Carries,
			p.InitialTouches, p.Throws, p.Captures, p.CarryTimeSeconds)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert round details: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}

	if r.logger != nil {
		r.logger.Debug("stored report",
			zap.String("report_id", rep.ID.String()),
			zap.String("map", rep.MapName),
			zap.Int("statements", batch.Len()+2),
		)
	}
	return nil
}

// Round returns the stored header of a round.
func (r *ReportRepository) Round(ctx context.Context, id uuid.UUID) (*RoundSummary, error) {
	var (
		s      RoundSummary
		winner string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, map_name, round_end, scored_by_replay, winner, checksum
		FROM rounds WHERE id = $1
	`, id).Scan(&s.ID, &s.MapName, &s.RoundEnd, &s.ScoredByReplay, &winner, &s.Checksum)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query round: %w", err)
	}
	if s.Winner, err = ctf.ParseTeamColor(winner); err != nil {
		return nil, fmt.Errorf("round %s: %w", id, err)
	}
	return &s, nil
}

// Scores returns the stored final scores of a round.
func (r *ReportRepository) Scores(ctx context.Context, id uuid.UUID) (ctf.ScoreMap, error) {
	var scores ctf.ScoreMap

	rows, err := r.pool.Query(ctx, `SELECT team, score FROM round_scores WHERE round_id = $1`, id)
	if err != nil {
		return scores, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var (
			name  string
			score int
		)
		if err := rows.Scan(&name, &score); err != nil {
			return scores, fmt.Errorf("failed to scan score: %w", err)
		}
		team, err := ctf.ParseTeamColor(name)
		if err != nil {
			return scores, fmt.Errorf("round %s: %w", id, err)
		}
		scores[team] = score
		found = true
	}
	if err := rows.Err(); err != nil {
		return scores, fmt.Errorf("failed to read scores: %w", err)
	}
	if !found {
		return scores, ErrReportNotFound
	}
	return scores, nil
}
