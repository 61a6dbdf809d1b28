package services

import (
	"errors"
	"fmt"
	"strings"
)

// Shared sentinel errors. Handlers map these onto HTTP statuses.
var (
	// Not found
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrPlayerNotFound     = errors.New("player not found in this tournament")
	ErrTableNotFound      = errors.New("table not found in this round")
	ErrRoundNotFound      = errors.New("round not found")

	// Invalid state
	ErrRegistrationClosed      = errors.New("tournament registration is closed")
	ErrTournamentNotInProgress = errors.New("tournament is not in progress")
	ErrTournamentAlreadyLive   = errors.New("tournament has already started")
	ErrNoActiveRound           = errors.New("no active round; start the tournament first")
	ErrRoundIncomplete         = errors.New("current round still has unreported tables")
	ErrNotEnoughPlayers        = errors.New("need at least 2 eligible players")
	ErrCutSizeInvalid          = errors.New("cut size must be an even number of at least 2 seated players")

	// Informational duplicates: the operation already happened and was
	// not re-applied.
	ErrAlreadyReported = errors.New("table result is already recorded")
	ErrAlreadyDropped  = errors.New("player is already dropped")

	// Reporting
	ErrNotSeated      = errors.New("only players seated at this table can report")
	ErrAmbiguousTable = errors.New("seated at multiple pending tables; specify the table")
	ErrNoActiveMatch  = errors.New("no active unreported match this round")
	ErrNoShowOnBye    = errors.New("player is seated at a bye; no-show does not apply")
	ErrInvalidResult  = errors.New("result must be A, B or D")

	// Decks
	ErrDeckLocked    = errors.New("decklist is locked")
	ErrNoDeckOnFile  = errors.New("player has no deck on file")
	ErrEmptyDecklist = errors.New("decklist text is empty")

	// Miscellaneous
	ErrConfirmationRequired = errors.New("operation requires explicit confirmation")
	ErrValidationFailed     = errors.New("validation failed")
	ErrPermissionDenied     = errors.New("operation not allowed for the current user")

	// ErrConflictRetry surfaces a lost optimistic-concurrency race;
	// re-issuing the command is safe.
	ErrConflictRetry = errors.New("concurrent update detected, retry the operation")

	ErrPersistence = errors.New("tournament storage failure")
)

// DeckLegalityError carries the itemized rule violations of an illegal
// decklist. Nothing was saved.
type DeckLegalityError struct {
	Reasons []string
}

func (e *DeckLegalityError) Error() string {
	return fmt.Sprintf("deck failed legality checks: %s", strings.Join(e.Reasons, "; "))
}

func (e *DeckLegalityError) Is(target error) bool {
	return target == ErrValidationFailed
}
