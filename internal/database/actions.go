package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/trivia/internal/cache"
)

// Actions persists room action records drained from the Redis queue.
type Actions struct {
	pool *pgxpool.Pool
}

func NewActions(pool *pgxpool.Pool) *Actions {
	return &Actions{pool: pool}
}

// sessionStatus maps terminal action types onto a session status.
func sessionStatus(actionType string) string {
	switch actionType {
	case "game_finished":
		return "finished"
	case "room_closed":
		return "closed"
	}
	return ""
}

// InsertActions writes a batch in one transaction, upserting the session row
// of each record. Replayed records are ignored.
func (a *Actions) InsertActions(ctx context.Context, recs []cache.RoomActionRecord) error {
	if len(recs) == 0 {
		return nil
	}
	err := pgx.BeginTxFunc(ctx, a.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, rec := range recs {
			at := time.UnixMilli(rec.Timestamp).UTC()
			batch.Queue(`
				INSERT INTO room_sessions (session_id, room_code, first_seen, last_seen)
				VALUES ($1, $2, $3, $3)
				ON CONFLICT (session_id)
				DO UPDATE SET
					last_seen = GREATEST(room_sessions.last_seen, EXCLUDED.last_seen),
					status = CASE WHEN room_sessions.status = 'abandoned' THEN 'active' ELSE room_sessions.status END
			`, rec.SessionID, rec.RoomCode, at)

			var payload []byte
			if len(rec.ActionPayload) > 0 && string(rec.ActionPayload) != "null" {
				payload = rec.ActionPayload
			}
			batch.Queue(`
				INSERT INTO room_actions (
					session_id, action_index, room_code, action_type, phase, instance, action_payload, occurred_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8)
				ON CONFLICT (session_id, action_index) DO NOTHING
			`, rec.SessionID, int64(rec.ActionIndex), rec.RoomCode, rec.ActionType, rec.Phase,
				int64(rec.Instance), payload, at)

			if status := sessionStatus(rec.ActionType); status != "" {
				batch.Queue(`
					UPDATE room_sessions SET status = $2
					WHERE session_id = $1 AND status = 'active'
				`, rec.SessionID, status)
			}
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("tx insert room actions: %w", err)
	}
	return nil
}

// MarkAbandoned flags active sessions with no action since cutoff.
func (a *Actions) MarkAbandoned(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := a.pool.Exec(ctx, `
		UPDATE room_sessions
		SET status = 'abandoned'
		WHERE status = 'active' AND last_seen < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountActions reports the stored actions of a session.
func (a *Actions) CountActions(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	err := a.pool.QueryRow(ctx, `SELECT count(*) FROM room_actions WHERE session_id = $1`, sessionID).Scan(&n)
	return n, err
}
