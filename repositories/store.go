package repositories

import (
	"context"
	"errors"

	"github.com/CharlieAKAN/Coop-Keeper/models"
)

var (
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrTournamentExists   = errors.New("tournament already exists")
	// ErrVersionConflict means another writer saved the document between
	// our load and save. The operation should be retried by the caller.
	ErrVersionConflict = errors.New("tournament document version conflict")
	ErrCorruptDocument = errors.New("tournament document is corrupt")
)

// TournamentRepository persists one JSON document per tournament id.
// Save is atomic and guarded by the document version: saving a stale
// version returns ErrVersionConflict.
type TournamentRepository interface {
	Load(ctx context.Context, tid string) (*models.Tournament, error)
	Save(ctx context.Context, t *models.Tournament) error
	Delete(ctx context.Context, tid string) error
	ListIDs(ctx context.Context) ([]string, error)
}
