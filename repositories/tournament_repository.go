package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/CharlieAKAN/Coop-Keeper/models"
	"github.com/lib/pq"
)

const uniqueViolationCode = "23505"

// postgresTournamentRepository stores each tournament as a single JSONB
// row keyed by tid, with a version column for compare-and-swap saves.
//
// Schema:
//
//	CREATE TABLE tournaments (
//	    tid        TEXT PRIMARY KEY,
//	    doc        JSONB NOT NULL,
//	    version    BIGINT NOT NULL DEFAULT 1,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) Load(ctx context.Context, tid string) (*models.Tournament, error) {
	var (
		raw     []byte
		version int64
	)
	query := `SELECT doc, version FROM tournaments WHERE tid = $1`
	err := r.db.QueryRowContext(ctx, query, tid).Scan(&raw, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("load tournament %s: %w", tid, err)
	}

	var t models.Tournament
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptDocument, tid, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptDocument, tid, err)
	}
	t.Version = version
	return &t, nil
}

func (r *postgresTournamentRepository) Save(ctx context.Context, t *models.Tournament) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: refusing to save: %v", ErrCorruptDocument, err)
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal tournament %s: %w", t.Meta.TID, err)
	}

	if t.Version == 0 {
		query := `INSERT INTO tournaments (tid, doc, version) VALUES ($1, $2, 1)`
		_, err := r.db.ExecContext(ctx, query, t.Meta.TID, raw)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode {
				return ErrVersionConflict
			}
			return fmt.Errorf("insert tournament %s: %w", t.Meta.TID, err)
		}
		t.Version = 1
		return nil
	}

	query := `
		UPDATE tournaments
		SET doc = $2, version = version + 1, updated_at = now()
		WHERE tid = $1 AND version = $3`
	res, err := r.db.ExecContext(ctx, query, t.Meta.TID, raw, t.Version)
	if err != nil {
		return fmt.Errorf("update tournament %s: %w", t.Meta.TID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tournament %s: rows affected: %w", t.Meta.TID, err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	t.Version++
	return nil
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, tid string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tournaments WHERE tid = $1`, tid)
	if err != nil {
		return fmt.Errorf("delete tournament %s: %w", tid, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTournamentNotFound
	}
	return nil
}

func (r *postgresTournamentRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT tid FROM tournaments ORDER BY tid`)
	if err != nil {
		return nil, fmt.Errorf("list tournaments: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var tid string
		if err := rows.Scan(&tid); err != nil {
			return nil, err
		}
		ids = append(ids, tid)
	}
	return ids, rows.Err()
}
