// Package repository is the sqlite persistence layer: repeat-avoidance
// state that survives restarts, and the queue of telemetry events that
// have not yet been acknowledged by the server.
package repository

import (
	"time"

	"github.com/jmoiron/sqlx"
)

type Repo struct {
	db *sqlx.DB
}

func NewRepo(db *sqlx.DB) *Repo { return &Repo{db: db} }

func (r *Repo) LoadPlayTimes() (map[int64]time.Time, error) {
	type row struct {
		AssetID  int64 `db:"asset_id"`
		PlayedAt int64 `db:"played_at"`
	}
	var rows []row
	if err := r.db.Select(&rows, `SELECT asset_id, played_at FROM asset_plays`); err != nil {
		return nil, err
	}
	out := make(map[int64]time.Time, len(rows))
	for _, rw := range rows {
		out[rw.AssetID] = time.Unix(rw.PlayedAt, 0)
	}
	return out, nil
}

func (r *Repo) SavePlayTime(assetID int64, playedAt time.Time) error {
	_, err := r.db.Exec(
		`INSERT INTO asset_plays(asset_id, played_at) VALUES (?, ?)
		 ON CONFLICT(asset_id) DO UPDATE SET played_at=excluded.played_at`,
		assetID, playedAt.Unix(),
	)
	return err
}

func (r *Repo) PrunePlayTimes(olderThan time.Time) error {
	_, err := r.db.Exec(`DELETE FROM asset_plays WHERE played_at < ?`, olderThan.Unix())
	return err
}

func (r *Repo) LoadCyclePositions() (map[int64]int64, error) {
	type row struct {
		RotatorID int64 `db:"rotator_id"`
		AssetID   int64 `db:"asset_id"`
	}
	var rows []row
	if err := r.db.Select(&rows, `SELECT rotator_id, asset_id FROM rotator_cycles`); err != nil {
		return nil, err
	}
	out := make(map[int64]int64, len(rows))
	for _, rw := range rows {
		out[rw.RotatorID] = rw.AssetID
	}
	return out, nil
}

func (r *Repo) SaveCyclePosition(rotatorID, assetID int64) error {
	_, err := r.db.Exec(
		`INSERT INTO rotator_cycles(rotator_id, asset_id) VALUES (?, ?)
		 ON CONFLICT(rotator_id) DO UPDATE SET asset_id=excluded.asset_id`,
		rotatorID, assetID,
	)
	return err
}

func (r *Repo) ClearAvoidance() error {
	if _, err := r.db.Exec(`DELETE FROM asset_plays`); err != nil {
		return err
	}
	_, err := r.db.Exec(`DELETE FROM rotator_cycles`)
	return err
}

// PendingLog is a telemetry event waiting for a server acknowledgment.
type PendingLog struct {
	ID          string    `db:"id"`
	EventType   string    `db:"event_type"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"-"`
}

func (r *Repo) InsertPendingLog(l PendingLog) error {
	_, err := r.db.Exec(
		`INSERT OR IGNORE INTO pending_logs(id, event_type, description, created_at) VALUES (?, ?, ?, ?)`,
		l.ID, l.EventType, l.Description, l.CreatedAt.Unix(),
	)
	return err
}

func (r *Repo) ListPendingLogs() ([]PendingLog, error) {
	type row struct {
		ID          string `db:"id"`
		EventType   string `db:"event_type"`
		Description string `db:"description"`
		CreatedAt   int64  `db:"created_at"`
	}
	var rows []row
	if err := r.db.Select(&rows,
		`SELECT id, event_type, description, created_at FROM pending_logs ORDER BY created_at ASC`); err != nil {
		return nil, err
	}
	out := make([]PendingLog, 0, len(rows))
	for _, rw := range rows {
		out = append(out, PendingLog{
			ID:          rw.ID,
			EventType:   rw.EventType,
			Description: rw.Description,
			CreatedAt:   time.Unix(rw.CreatedAt, 0),
		})
	}
	return out, nil
}

func (r *Repo) DeletePendingLogs(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM pending_logs WHERE id IN (?)`, ids)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(query, args...)
	return err
}
