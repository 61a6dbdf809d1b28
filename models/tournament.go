package models

import (
	"errors"
	"strconv"
	"time"
)

var (
	ErrMissingTID         = errors.New("document has no tournament id")
	ErrInvalidStatusValue = errors.New("document has an unknown status value")
	ErrMissingCollections = errors.New("document is missing players or rounds")
)

// TournamentStatus is the lifecycle state of a tournament. Transitions only
// move forward: registration -> in_progress -> completed.
type TournamentStatus string

const (
	StatusRegistration TournamentStatus = "registration"
	StatusInProgress   TournamentStatus = "in_progress"
	StatusCompleted    TournamentStatus = "completed"
)

type StructureKind string

const (
	StructureSwiss      StructureKind = "swiss"
	StructureSingleElim StructureKind = "single_elim"
	StructureSwissCut   StructureKind = "swiss+cut"
)

type OvertimeMode string

const (
	OvertimeNone        OvertimeMode = "none"
	OvertimeExtraTime   OvertimeMode = "extra_time"
	OvertimeExtraTurns  OvertimeMode = "extra_turns"
	OvertimeSuddenDeath OvertimeMode = "sudden_death"
)

type Overtime struct {
	Mode    OvertimeMode `json:"mode"`
	Minutes int          `json:"minutes,omitempty"`
	Turns   int          `json:"turns,omitempty"`
}

type TableConfig struct {
	Mode     string            `json:"mode"`
	Count    int               `json:"count"`
	LabelMap map[string]string `json:"labelMap,omitempty"`
}

// Label returns the display name for a table, falling back to "Table N".
func (tc TableConfig) Label(table int) string {
	if tc.LabelMap != nil {
		if l, ok := tc.LabelMap[strconv.Itoa(table)]; ok && l != "" {
			return l
		}
	}
	return "Table " + strconv.Itoa(table)
}

// RoundSchedule is a snapshot of the announcement schedule for the active
// round, kept for ops visibility. EndedAt is set when the last result lands.
type RoundSchedule struct {
	Round        int        `json:"round"`
	PostedAt     time.Time  `json:"postedAt"`
	PrepMinutes  int        `json:"prepMinutes"`
	RoundMinutes int        `json:"roundMinutes"`
	Overtime     Overtime   `json:"overtime"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`
}

type Meta struct {
	TID              string           `json:"tid"`
	Name             string           `json:"name"`
	Structure        StructureKind    `json:"structure"`
	BestOf           int              `json:"bestOf"`
	RoundTimeMinutes int              `json:"roundTimeMinutes"`
	MaxPlayers       int              `json:"maxPlayers"`
	PaidRequired     bool             `json:"paidRequired"`
	EntryFeeCents    int              `json:"entryFeeCents"`
	Currency         string           `json:"currency"`
	Status           TournamentStatus `json:"status"`
	CurrentRound     int              `json:"currentRound"`
	RequireDecklist  bool             `json:"requireDecklist"`
	Overtime         Overtime         `json:"overtime"`
	Tables           TableConfig      `json:"tables"`

	// Channel/role bindings used by the delivery layer.
	GuildID            string `json:"guildId,omitempty"`
	ChannelID          string `json:"channelId,omitempty"`
	AnnounceChannelID  string `json:"announceChannelId,omitempty"`
	PairingChannelID   string `json:"pairingChannelId,omitempty"`
	ResultsChannelID   string `json:"resultsChannelId,omitempty"`
	StandingsChannelID string `json:"standingsChannelId,omitempty"`
	ReviewChannelID    string `json:"reviewChannelId,omitempty"`
	PlayerRoleID       string `json:"playerRoleId,omitempty"`

	RoundSchedule *RoundSchedule `json:"roundSchedule,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

type PaymentMode string

const (
	PaymentModeLink PaymentMode = "link"
	PaymentModeQR   PaymentMode = "qr"
	PaymentModeBoth PaymentMode = "both"
)

type PaymentSettings struct {
	Mode    PaymentMode `json:"mode,omitempty"`
	LinkURL string      `json:"linkUrl,omitempty"`
	QRKey   string      `json:"qrKey,omitempty"`
	QRURL   string      `json:"qrUrl,omitempty"`
	Note    string      `json:"note,omitempty"`
}

// Tournament is the full persisted document for one tournament id. Rounds is
// keyed by the round number rendered as a string ("1", "2", ...), matching
// the JSON layout in the store.
type Tournament struct {
	Meta    Meta               `json:"meta"`
	Payment PaymentSettings    `json:"payment"`
	Players map[string]*Player `json:"players"`
	Rounds  map[string]*Round  `json:"rounds"`

	// Version is the store's optimistic-concurrency counter, not part of
	// the document itself.
	Version int64 `json:"-"`
}

func NewTournament(tid string) *Tournament {
	return &Tournament{
		Meta: Meta{
			TID:       tid,
			Status:    StatusRegistration,
			Currency:  "usd",
			Tables:    TableConfig{Mode: "virtual", Count: 999},
			Overtime:  Overtime{Mode: OvertimeNone},
			CreatedAt: time.Now().UTC(),
		},
		Players: make(map[string]*Player),
		Rounds:  make(map[string]*Round),
	}
}

// Round returns the round with the given number, or nil.
func (t *Tournament) Round(n int) *Round {
	if t.Rounds == nil {
		return nil
	}
	return t.Rounds[strconv.Itoa(n)]
}

// SetRound stores pairings for a round and advances the tournament into it.
func (t *Tournament) SetRound(n int, r *Round) {
	if t.Rounds == nil {
		t.Rounds = make(map[string]*Round)
	}
	t.Rounds[strconv.Itoa(n)] = r
	t.Meta.CurrentRound = n
	t.Meta.Status = StatusInProgress
}

// PriorRounds returns rounds 1..upto-1 in order. Missing rounds come back
// empty so opponent history can still be built from partial data.
func (t *Tournament) PriorRounds(upto int) []*Round {
	rounds := make([]*Round, 0)
	for n := 1; n < upto; n++ {
		r := t.Round(n)
		if r == nil {
			r = &Round{}
		}
		rounds = append(rounds, r)
	}
	return rounds
}

// Validate checks the structural invariants a loaded document must satisfy.
func (t *Tournament) Validate() error {
	if t.Meta.TID == "" {
		return ErrMissingTID
	}
	switch t.Meta.Status {
	case StatusRegistration, StatusInProgress, StatusCompleted:
	default:
		return ErrInvalidStatusValue
	}
	if t.Players == nil || t.Rounds == nil {
		return ErrMissingCollections
	}
	return nil
}
