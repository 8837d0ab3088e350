package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/trivia/internal/models"
)

// Results stores finished room summaries. It implements game.ResultSink.
type Results struct {
	pool *pgxpool.Pool
}

func NewResults(pool *pgxpool.Pool) *Results {
	return &Results{pool: pool}
}

// StoreResults writes the summary and its standings in one transaction. A
// second call for the same session is ignored.
func (s *Results) StoreResults(ctx context.Context, sum models.RoomSummary) error {
	raw, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	var winner, sprintWinner *string
	if sum.Winner != nil {
		winner = &sum.Winner.Name
	}
	if sum.SprintWinner != nil {
		sprintWinner = &sum.SprintWinner.Name
	}
	var started *time.Time
	if !sum.StartedAt.IsZero() {
		started = &sum.StartedAt
	}

	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var id int64
		insertQ := `
			INSERT INTO room_results (
				session_id, room_code, host_name, winner_name, sprint_winner_name,
				total_participants, total_questions, average_score, duration_minutes,
				started_at, finished_at, summary
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (session_id) DO NOTHING
			RETURNING id
		`
		err := tx.QueryRow(ctx, insertQ,
			sum.SessionID, sum.RoomCode, sum.HostName, winner, sprintWinner,
			sum.TotalParticipants, sum.TotalQuestions, sum.AverageScore, float64(sum.DurationMinutes),
			started, sum.FinishedAt, raw,
		).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		standingQ := `
			INSERT INTO room_standings (result_id, participant_id, name, rank, score, status)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		for _, st := range sum.Leaderboard {
			if _, err := tx.Exec(ctx, standingQ, id, st.ParticipantID, st.Name, st.Rank, st.Score, string(st.Status)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx store room results: %w", err)
	}
	return nil
}

// RecentResults returns the latest summaries for a room code, newest first.
func (s *Results) RecentResults(ctx context.Context, roomCode string, limit int) ([]models.RoomSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT summary FROM room_results
		WHERE room_code = $1
		ORDER BY finished_at DESC
		LIMIT $2
	`, roomCode, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.RoomSummary, error) {
		var sum models.RoomSummary
		err := row.Scan(&sum)
		return sum, err
	})
}
