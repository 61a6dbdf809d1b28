package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/CharlieAKAN/Coop-Keeper/delivery"
	"github.com/CharlieAKAN/Coop-Keeper/models"
	"github.com/CharlieAKAN/Coop-Keeper/repositories"
	"github.com/CharlieAKAN/Coop-Keeper/storage"
)

type StandingRow struct {
	Rank        int           `json:"rank"`
	UserID      string        `json:"userId"`
	DisplayName string        `json:"displayName"`
	Score       int           `json:"score"`
	Record      models.Record `json:"record"`
}

// AuditReport groups the roster by the states an organizer acts on.
type AuditReport struct {
	PaymentVerified []string `json:"paymentVerified"`
	PaymentPending  []string `json:"paymentPending"`
	PaymentUnpaid   []string `json:"paymentUnpaid"`
	DeckApproved    []string `json:"deckApproved"`
	DeckPending     []string `json:"deckPending"`
	DeckRejected    []string `json:"deckRejected"`
	DeckMissing     []string `json:"deckMissing"`
	Dropped         []string `json:"dropped"`
}

type StandingsService interface {
	Standings(ctx context.Context, tid string, topN int) ([]StandingRow, error)
	Post(ctx context.Context, tid string, topN int) error
	ExportCSV(ctx context.Context, tid string) (*storage.UploadResult, error)
	Audit(ctx context.Context, tid string) (*AuditReport, error)
	ExportAuditCSV(ctx context.Context, tid string) (*storage.UploadResult, error)
}

type standingsService struct {
	repo     repositories.TournamentRepository
	uploader storage.FileUploader
	send     delivery.Sender
	logger   *slog.Logger
}

func NewStandingsService(
	repo repositories.TournamentRepository,
	uploader storage.FileUploader,
	send delivery.Sender,
	logger *slog.Logger,
) StandingsService {
	return &standingsService{repo: repo, uploader: uploader, send: send, logger: logger}
}

// sortedStandings orders the active roster: score descending, then wins
// descending, then display name ascending for a stable presentation.
// Dropped players are excluded; they only surface in the audit views.
func sortedStandings(t *models.Tournament) []*models.Player {
	out := make([]*models.Player, 0, len(t.Players))
	for _, p := range t.Players {
		if p.Dropped {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Record.Wins != out[j].Record.Wins {
			return out[i].Record.Wins > out[j].Record.Wins
		}
		ni, nj := out[i].DisplayName, out[j].DisplayName
		if ni != nj {
			return ni < nj
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

func (s *standingsService) Standings(ctx context.Context, tid string, topN int) ([]StandingRow, error) {
	t, err := s.repo.Load(ctx, tid)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return standingRows(t, topN), nil
}

func standingRows(t *models.Tournament, topN int) []StandingRow {
	sorted := sortedStandings(t)
	if topN > 0 && topN < len(sorted) {
		sorted = sorted[:topN]
	}
	rows := make([]StandingRow, 0, len(sorted))
	for i, p := range sorted {
		rows = append(rows, StandingRow{
			Rank:        i + 1,
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Score:       p.Score,
			Record:      p.Record,
		})
	}
	return rows
}

// Post publishes the current standings to the standings channel.
func (s *standingsService) Post(ctx context.Context, tid string, topN int) error {
	t, err := s.repo.Load(ctx, tid)
	if err != nil {
		return mapRepoError(err)
	}
	rows := standingRows(t, topN)

	var b strings.Builder
	fmt.Fprintf(&b, "Standings after Round %d:\n", t.Meta.CurrentRound)
	for _, r := range rows {
		fmt.Fprintf(&b, "%d. %s — %d pts (%d-%d-%d)\n",
			r.Rank, r.DisplayName, r.Score,
			r.Record.Wins, r.Record.Losses, r.Record.Draws)
	}

	chanID := firstNonEmpty(t.Meta.StandingsChannelID, t.Meta.ChannelID)
	msg := delivery.NewMessage(delivery.TypeStandings, tid, b.String())
	if err := s.send.SendToChannel(chanID, msg); err != nil {
		s.logger.Warn("standings post failed",
			slog.String("tid", tid), slog.Any("error", err))
	}
	return nil
}

// ExportCSV renders the full standings to CSV and uploads it to object
// storage, returning the public location.
func (s *standingsService) ExportCSV(ctx context.Context, tid string) (*storage.UploadResult, error) {
	if s.uploader == nil {
		return nil, fmt.Errorf("%w: file storage is not configured, exports are disabled", ErrValidationFailed)
	}

	t, err := s.repo.Load(ctx, tid)
	if err != nil {
		return nil, mapRepoError(err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"rank", "userId", "displayName", "score", "wins", "losses", "draws"})
	for _, r := range standingRows(t, 0) {
		w.Write([]string{
			strconv.Itoa(r.Rank),
			r.UserID,
			r.DisplayName,
			strconv.Itoa(r.Score),
			strconv.Itoa(r.Record.Wins),
			strconv.Itoa(r.Record.Losses),
			strconv.Itoa(r.Record.Draws),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("render standings csv: %w", err)
	}

	key := fmt.Sprintf("tournaments/%s/standings-%s.csv", tid, uuid.NewString())
	result, err := s.uploader.Upload(ctx, key, "text/csv", &buf)
	if err != nil {
		return nil, fmt.Errorf("upload standings csv: %w", err)
	}
	return result, nil
}

func (s *standingsService) Audit(ctx context.Context, tid string) (*AuditReport, error) {
	t, err := s.repo.Load(ctx, tid)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return buildAudit(t), nil
}

func buildAudit(t *models.Tournament) *AuditReport {
	rep := &AuditReport{}
	names := make([]*models.Player, 0, len(t.Players))
	for _, p := range t.Players {
		names = append(names, p)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].DisplayName < names[j].DisplayName })

	for _, p := range names {
		name := p.DisplayName
		switch p.PaymentStatus {
		case models.PaymentVerified:
			rep.PaymentVerified = append(rep.PaymentVerified, name)
		case models.PaymentPending:
			rep.PaymentPending = append(rep.PaymentPending, name)
		default:
			rep.PaymentUnpaid = append(rep.PaymentUnpaid, name)
		}
		switch p.DeckStatusOrNone() {
		case models.DeckApproved:
			rep.DeckApproved = append(rep.DeckApproved, name)
		case models.DeckPending:
			rep.DeckPending = append(rep.DeckPending, name)
		case models.DeckRejected:
			rep.DeckRejected = append(rep.DeckRejected, name)
		default:
			rep.DeckMissing = append(rep.DeckMissing, name)
		}
		if p.Dropped {
			rep.Dropped = append(rep.Dropped, name)
		}
	}
	return rep
}

// ExportAuditCSV uploads a per-player audit sheet: one row per player with
// payment, deck and drop state.
func (s *standingsService) ExportAuditCSV(ctx context.Context, tid string) (*storage.UploadResult, error) {
	if s.uploader == nil {
		return nil, fmt.Errorf("%w: file storage is not configured, exports are disabled", ErrValidationFailed)
	}

	t, err := s.repo.Load(ctx, tid)
	if err != nil {
		return nil, mapRepoError(err)
	}

	players := make([]*models.Player, 0, len(t.Players))
	for _, p := range t.Players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].DisplayName < players[j].DisplayName })

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"userId", "displayName", "paymentStatus", "deckStatus", "dropped", "score"})
	for _, p := range players {
		w.Write([]string{
			p.UserID,
			p.DisplayName,
			string(p.PaymentStatus),
			string(p.DeckStatusOrNone()),
			strconv.FormatBool(p.Dropped),
			strconv.Itoa(p.Score),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("render audit csv: %w", err)
	}

	key := fmt.Sprintf("tournaments/%s/audit-%s.csv", tid, uuid.NewString())
	result, err := s.uploader.Upload(ctx, key, "text/csv", &buf)
	if err != nil {
		return nil, fmt.Errorf("upload audit csv: %w", err)
	}
	return result, nil
}
