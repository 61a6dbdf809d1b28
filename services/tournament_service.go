package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/CharlieAKAN/Coop-Keeper/models"
	"github.com/CharlieAKAN/Coop-Keeper/repositories"
	"github.com/CharlieAKAN/Coop-Keeper/storage"
)

type CreateTournamentInput struct {
	TID              string               `json:"tid"`
	Name             string               `json:"name"`
	Structure        models.StructureKind `json:"structure"`
	BestOf           int                  `json:"bestOf"`
	RoundTimeMinutes int                  `json:"roundTimeMinutes"`
	MaxPlayers       int                  `json:"maxPlayers"`
	PaidRequired     bool                 `json:"paidRequired"`
	EntryFeeCents    int                  `json:"entryFeeCents"`
	RequireDecklist  bool                 `json:"requireDecklist"`
	OvertimeMode     models.OvertimeMode  `json:"overtimeMode"`
	OvertimeMinutes  int                  `json:"overtimeMinutes"`
	OvertimeTurns    int                  `json:"overtimeTurns"`
	GuildID          string               `json:"guildId"`
	ChannelID        string               `json:"channelId"`
}

type PaymentInput struct {
	Mode    models.PaymentMode
	LinkURL string
	Note    string

	// Optional QR image, uploaded to object storage before the settings
	// are saved.
	QRImage       io.Reader
	QRContentType string
}

type MetaPatch struct {
	Name               *string                  `json:"name,omitempty"`
	Status             *models.TournamentStatus `json:"status,omitempty"`
	RoundTimeMinutes   *int                     `json:"roundTimeMinutes,omitempty"`
	PaidRequired       *bool                    `json:"paidRequired,omitempty"`
	RequireDecklist    *bool                    `json:"requireDecklist,omitempty"`
	AnnounceChannelID  *string                  `json:"announceChannelId,omitempty"`
	PairingChannelID   *string                  `json:"pairingChannelId,omitempty"`
	ResultsChannelID   *string                  `json:"resultsChannelId,omitempty"`
	StandingsChannelID *string                  `json:"standingsChannelId,omitempty"`
	ReviewChannelID    *string                  `json:"reviewChannelId,omitempty"`
	PlayerRoleID       *string                  `json:"playerRoleId,omitempty"`
	TableLabels        map[string]string        `json:"tableLabels,omitempty"`
}

type TournamentService interface {
	Create(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error)
	Get(ctx context.Context, tid string) (*models.Tournament, error)
	List(ctx context.Context) ([]string, error)
	UpdateMeta(ctx context.Context, tid string, patch MetaPatch) (*models.Tournament, error)
	SetPayment(ctx context.Context, tid string, input PaymentInput) (*models.PaymentSettings, error)
	Delete(ctx context.Context, tid string, confirm bool) error
}

type tournamentService struct {
	repo     repositories.TournamentRepository
	uploader storage.FileUploader
	locks    *tidLocker
	logger   *slog.Logger
}

func NewTournamentService(
	repo repositories.TournamentRepository,
	uploader storage.FileUploader,
	locks *tidLocker,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{repo: repo, uploader: uploader, locks: locks, logger: logger}
}

func (s *tournamentService) Create(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(input.TID)
	defer unlock()

	if _, err := s.repo.Load(ctx, input.TID); err == nil {
		return nil, fmt.Errorf("%w: tournament %q already exists", ErrValidationFailed, input.TID)
	}

	t := models.NewTournament(input.TID)
	t.Meta.Name = input.Name
	t.Meta.Structure = input.Structure
	t.Meta.BestOf = input.BestOf
	t.Meta.RoundTimeMinutes = input.RoundTimeMinutes
	t.Meta.MaxPlayers = input.MaxPlayers
	t.Meta.PaidRequired = input.PaidRequired
	t.Meta.EntryFeeCents = input.EntryFeeCents
	t.Meta.RequireDecklist = input.RequireDecklist
	t.Meta.GuildID = input.GuildID
	t.Meta.ChannelID = input.ChannelID
	t.Meta.Overtime = models.Overtime{Mode: input.OvertimeMode}
	switch input.OvertimeMode {
	case models.OvertimeExtraTime:
		t.Meta.Overtime.Minutes = input.OvertimeMinutes
	case models.OvertimeExtraTurns:
		t.Meta.Overtime.Turns = input.OvertimeTurns
	}

	if err := s.repo.Save(ctx, t); err != nil {
		return nil, mapRepoError(err)
	}
	s.logger.Info("tournament created",
		slog.String("tid", t.Meta.TID),
		slog.String("structure", string(t.Meta.Structure)))
	return t, nil
}

// validateCreateInput enforces the option matrix: a paid event needs a
// positive fee, and overtime amounts are only valid with their mode.
func validateCreateInput(in CreateTournamentInput) error {
	if in.TID == "" || in.Name == "" {
		return fmt.Errorf("%w: tid and name are required", ErrValidationFailed)
	}
	switch in.Structure {
	case models.StructureSwiss, models.StructureSingleElim, models.StructureSwissCut:
	default:
		return fmt.Errorf("%w: unknown structure %q", ErrValidationFailed, in.Structure)
	}
	if in.BestOf != 1 && in.BestOf != 3 {
		return fmt.Errorf("%w: bestOf must be 1 or 3", ErrValidationFailed)
	}
	if in.RoundTimeMinutes <= 0 {
		return fmt.Errorf("%w: roundTimeMinutes must be positive", ErrValidationFailed)
	}
	if in.MaxPlayers <= 0 {
		return fmt.Errorf("%w: maxPlayers must be positive", ErrValidationFailed)
	}
	if in.PaidRequired && in.EntryFeeCents <= 0 {
		return fmt.Errorf("%w: paid events need a positive fee in cents", ErrValidationFailed)
	}
	if in.OvertimeMode == "" {
		return nil
	}
	switch in.OvertimeMode {
	case models.OvertimeNone, models.OvertimeExtraTime, models.OvertimeExtraTurns, models.OvertimeSuddenDeath:
	default:
		return fmt.Errorf("%w: unknown overtime mode %q", ErrValidationFailed, in.OvertimeMode)
	}
	if in.OvertimeMode == models.OvertimeExtraTime && in.OvertimeMinutes <= 0 {
		return fmt.Errorf("%w: set overtimeMinutes when overtimeMode=extra_time", ErrValidationFailed)
	}
	if in.OvertimeMode != models.OvertimeExtraTime && in.OvertimeMinutes > 0 {
		return fmt.Errorf("%w: overtimeMinutes is only valid when overtimeMode=extra_time", ErrValidationFailed)
	}
	if in.OvertimeMode == models.OvertimeExtraTurns && in.OvertimeTurns <= 0 {
		return fmt.Errorf("%w: set overtimeTurns when overtimeMode=extra_turns", ErrValidationFailed)
	}
	if in.OvertimeMode != models.OvertimeExtraTurns && in.OvertimeTurns > 0 {
		return fmt.Errorf("%w: overtimeTurns is only valid when overtimeMode=extra_turns", ErrValidationFailed)
	}
	return nil
}

func (s *tournamentService) Get(ctx context.Context, tid string) (*models.Tournament, error) {
	t, err := s.repo.Load(ctx, tid)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return t, nil
}

// List returns the ids of every stored tournament.
func (s *tournamentService) List(ctx context.Context) ([]string, error) {
	ids, err := s.repo.ListIDs(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return ids, nil
}

// Delete removes the whole tournament document. Irreversible, so the
// caller has to confirm.
func (s *tournamentService) Delete(ctx context.Context, tid string, confirm bool) error {
	if !confirm {
		return ErrConfirmationRequired
	}

	unlock := s.locks.Lock(tid)
	defer unlock()

	if err := s.repo.Delete(ctx, tid); err != nil {
		return mapRepoError(err)
	}
	s.logger.Info("tournament deleted", slog.String("tid", tid))
	return nil
}

func (s *tournamentService) UpdateMeta(ctx context.Context, tid string, patch MetaPatch) (*models.Tournament, error) {
	unlock := s.locks.Lock(tid)
	defer unlock()

	t, err := s.repo.Load(ctx, tid)
	if err != nil {
		return nil, mapRepoError(err)
	}

	if patch.Status != nil {
		if err := validateStatusTransition(t.Meta.Status, *patch.Status); err != nil {
			return nil, err
		}
		t.Meta.Status = *patch.Status
	}
	if patch.Name != nil {
		t.Meta.Name = *patch.Name
	}
	if patch.RoundTimeMinutes != nil {
		t.Meta.RoundTimeMinutes = *patch.RoundTimeMinutes
	}
	if patch.PaidRequired != nil {
		t.Meta.PaidRequired = *patch.PaidRequired
	}
	if patch.RequireDecklist != nil {
		t.Meta.RequireDecklist = *patch.RequireDecklist
	}
	if patch.AnnounceChannelID != nil {
		t.Meta.AnnounceChannelID = *patch.AnnounceChannelID
	}
	if patch.PairingChannelID != nil {
		t.Meta.PairingChannelID = *patch.PairingChannelID
	}
	if patch.ResultsChannelID != nil {
		t.Meta.ResultsChannelID = *patch.ResultsChannelID
	}
	if patch.StandingsChannelID != nil {
		t.Meta.StandingsChannelID = *patch.StandingsChannelID
	}
	if patch.ReviewChannelID != nil {
		t.Meta.ReviewChannelID = *patch.ReviewChannelID
	}
	if patch.PlayerRoleID != nil {
		t.Meta.PlayerRoleID = *patch.PlayerRoleID
	}
	if patch.TableLabels != nil {
		if t.Meta.Tables.LabelMap == nil {
			t.Meta.Tables.LabelMap = make(map[string]string)
		}
		for k, v := range patch.TableLabels {
			t.Meta.Tables.LabelMap[k] = v
		}
	}

	if err := s.repo.Save(ctx, t); err != nil {
		return nil, mapRepoError(err)
	}
	return t, nil
}

// Status only moves forward. Completion arrives through this path as an
// operator signal; nothing in the engine flips it automatically.
func validateStatusTransition(current, next models.TournamentStatus) error {
	if current == next {
		return nil
	}
	allowed := map[models.TournamentStatus][]models.TournamentStatus{
		models.StatusRegistration: {models.StatusInProgress},
		models.StatusInProgress:   {models.StatusCompleted},
		models.StatusCompleted:    {},
	}
	for _, n := range allowed[current] {
		if n == next {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot move from %s to %s", ErrValidationFailed, current, next)
}

func (s *tournamentService) SetPayment(ctx context.Context, tid string, input PaymentInput) (*models.PaymentSettings, error) {
	switch input.Mode {
	case models.PaymentModeLink:
		if input.LinkURL == "" {
			return nil, fmt.Errorf("%w: provide a link for link mode", ErrValidationFailed)
		}
	case models.PaymentModeQR:
		if input.QRImage == nil {
			return nil, fmt.Errorf("%w: upload a QR image for qr mode", ErrValidationFailed)
		}
	case models.PaymentModeBoth:
		if input.LinkURL == "" && input.QRImage == nil {
			return nil, fmt.Errorf("%w: provide a link and/or QR image", ErrValidationFailed)
		}
	default:
		return nil, fmt.Errorf("%w: unknown payment mode %q", ErrValidationFailed, input.Mode)
	}

	note := input.Note
	if note == "" {
		note = "IMPORTANT: include your username in the payment notes."
	}

	var qrKey, qrURL string
	if input.QRImage != nil {
		if s.uploader == nil {
			return nil, fmt.Errorf("%w: file storage is not configured, QR uploads are disabled", ErrValidationFailed)
		}
		key := fmt.Sprintf("tournaments/%s/payment-qr-%s", tid, uuid.NewString())
		result, err := s.uploader.Upload(ctx, key, input.QRContentType, input.QRImage)
		if err != nil {
			return nil, fmt.Errorf("upload payment QR: %w", err)
		}
		qrKey = result.Key
		qrURL = result.Location
	}

	unlock := s.locks.Lock(tid)
	defer unlock()

	t, err := s.repo.Load(ctx, tid)
	if err != nil {
		return nil, mapRepoError(err)
	}

	staleQRKey := ""
	t.Payment.Mode = input.Mode
	t.Payment.LinkURL = input.LinkURL
	t.Payment.Note = note
	if qrKey != "" {
		if t.Payment.QRKey != "" && t.Payment.QRKey != qrKey {
			staleQRKey = t.Payment.QRKey
		}
		t.Payment.QRKey = qrKey
		t.Payment.QRURL = qrURL
	}

	if err := s.repo.Save(ctx, t); err != nil {
		return nil, mapRepoError(err)
	}

	// Best effort: the replaced QR image has no references left.
	if staleQRKey != "" {
		if err := s.uploader.Delete(ctx, staleQRKey); err != nil {
			s.logger.Warn("stale payment QR cleanup failed",
				slog.String("tid", tid),
				slog.String("key", staleQRKey),
				slog.Any("error", err))
		}
	}
	return &t.Payment, nil
}
