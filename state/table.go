package state

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/wfunc/gamehub/cards"
	"github.com/wfunc/gamehub/logger"
)

// Phase represents the lifecycle stage of a table.
type Phase string

const (
	// PhaseLobby accepts joins and waits for the host to start a round.
	PhaseLobby Phase = "lobby"
	// PhasePlaying means cards are dealt and players act in seat order.
	PhasePlaying Phase = "playing"
	// PhaseDealer is the automated dealer draw.
	PhaseDealer Phase = "dealer"
	// PhaseResults holds the settled round until the host resets.
	PhaseResults Phase = "results"
)

// Status is a player's standing within the current round.
type Status string

const (
	StatusNone      Status = ""
	StatusStood     Status = "stood"
	StatusBusted    Status = "busted"
	StatusBlackjack Status = "blackjack"
)

// Outcome 结算结果
type Outcome string

const (
	OutcomeWin       Outcome = "win"
	OutcomeLose      Outcome = "lose"
	OutcomePush      Outcome = "push"
	OutcomeBust      Outcome = "bust"
	OutcomeBlackjack Outcome = "blackjack"
)

// Action is a command a seated player can issue.
type Action string

const (
	ActionStartRound Action = "startRound"
	ActionReset      Action = "reset"
	ActionHit        Action = "hit"
	ActionStand      Action = "stand"
)

// DealerTurn is the CurrentTurn marker while the dealer plays.
const DealerTurn = "dealer"

const (
	MaxNameLength = 32
	DefaultName   = "Player"
)

type Player struct {
	ID        string
	Name      string
	Hand      []cards.Card
	Score     int
	Status    Status
	Connected bool
	IsHost    bool

	// dealtIn is set for players who received cards this round; late joiners sit out.
	dealtIn bool
}

// DealtIn reports whether the player was dealt into the current round.
func (p *Player) DealtIn() bool {
	return p.dealtIn
}

// PlayerResult is one player's line in a settled round.
type PlayerResult struct {
	PlayerID string
	Name     string
	Hand     []cards.Card
	Score    int
	Status   Status
	Outcome  Outcome
}

// RoundResult describes a settled round.
type RoundResult struct {
	RoomCode    string
	Round       int
	DealerHand  []cards.Card
	DealerScore int
	Players     []PlayerResult
}

type Options struct {
	DeckCount   int
	MaxPlayers  int // 0 = unlimited
	NewShoe     func(deckCount int) *cards.Shoe
	NewPlayerID func() string
	OnSettled   func(RoundResult)
}

// Table is the authoritative state of one room. It is not safe for concurrent
// use; the owning room serializes every call.
type Table struct {
	Code        string
	Players     []*Player // seat order, append-only
	DealerHand  []cards.Card
	DealerScore int
	CurrentTurn string
	Results     map[string]Outcome
	Round       int

	shoe    *cards.Shoe
	opts    Options
	machine *BaseStateMachine

	lobby   State
	playing State
	dealer  State
	results State
}

func NewTable(code string, opts Options) *Table {
	if opts.DeckCount <= 0 {
		opts.DeckCount = cards.DefaultDeckCount
	}
	if opts.NewShoe == nil {
		opts.NewShoe = func(deckCount int) *cards.Shoe {
			return cards.NewShuffledShoe(deckCount, nil)
		}
	}
	if opts.NewPlayerID == nil {
		opts.NewPlayerID = uuid.NewString
	}

	t := &Table{Code: code, opts: opts}
	t.lobby = NewLobbyState(t)
	t.playing = NewPlayingState(t)
	t.dealer = NewDealerState(t)
	t.results = NewResultsState(t)

	t.machine = NewBaseStateMachine(t.lobby)
	hasPlayers := func() bool { return t.ConnectedCount() > 0 }
	t.machine.AddTransition(t.lobby, t.lobby, nil)
	t.machine.AddTransition(t.lobby, t.playing, hasPlayers)
	t.machine.AddTransition(t.lobby, t.dealer, hasPlayers)
	t.machine.AddTransition(t.playing, t.dealer, nil)
	t.machine.AddTransition(t.playing, t.lobby, nil)
	t.machine.AddTransition(t.dealer, t.results, nil)
	t.machine.AddTransition(t.dealer, t.lobby, nil)
	t.machine.AddTransition(t.results, t.lobby, nil)
	return t
}

func (t *Table) Phase() Phase {
	return t.machine.GetCurrentState().GetID()
}

func (t *Table) Player(id string) *Player {
	if id == "" {
		return nil
	}
	for _, p := range t.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (t *Table) ConnectedCount() int {
	n := 0
	for _, p := range t.Players {
		if p.Connected {
			n++
		}
	}
	return n
}

// Join seats a player. A playerID naming a disconnected player reattaches that
// seat; one naming a connected player is rejected. Anything else appends a new
// seat, the first of which becomes host.
func (t *Table) Join(playerID, name string) (player *Player, rejoined bool, err error) {
	name = normalizeName(name)

	if p := t.Player(playerID); p != nil {
		if p.Connected {
			return nil, false, ErrAlreadyInGame
		}
		p.Connected = true
		p.Name = name
		return p, true, nil
	}

	if t.opts.MaxPlayers > 0 && len(t.Players) >= t.opts.MaxPlayers {
		return nil, false, ErrTableFull
	}

	player = &Player{
		ID:        t.opts.NewPlayerID(),
		Name:      name,
		Connected: true,
		IsHost:    len(t.Players) == 0,
	}
	t.Players = append(t.Players, player)
	return player, false, nil
}

// Disconnect marks a player absent. The seat, hand and turn slot are kept.
func (t *Table) Disconnect(playerID string) bool {
	p := t.Player(playerID)
	if p == nil || !p.Connected {
		return false
	}
	p.Connected = false
	return true
}

// Handle applies a player's command or returns the rejection.
func (t *Table) Handle(playerID string, action Action) error {
	player := t.Player(playerID)
	if player == nil {
		return ErrNotJoined
	}

	switch action {
	case ActionReset:
		if !player.IsHost {
			return ErrNotHostReset
		}
		return t.machine.ChangeState(t.lobby)
	case ActionStartRound, ActionHit, ActionStand:
		return t.machine.GetCurrentState().HandleAction(player, action)
	}
	return ErrUnknownAction
}

// TimeoutTurn stands playerID if they still hold the turn.
func (t *Table) TimeoutTurn(playerID string) bool {
	if t.Phase() != PhasePlaying || t.CurrentTurn != playerID {
		return false
	}
	p := t.Player(playerID)
	if p == nil {
		return false
	}
	p.Status = StatusStood
	if err := t.advanceTurn(); err != nil {
		logger.Log.Errorw("advance after turn timeout failed", "room", t.Code, "error", err)
	}
	return true
}

func (t *Table) canAct(p *Player) bool {
	return p.Connected && p.dealtIn && p.Status == StatusNone
}

func (t *Table) seatOf(playerID string) int {
	for i, p := range t.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

func (t *Table) draw() cards.Card {
	c, err := t.shoe.Draw()
	if errors.Is(err, cards.ErrShoeEmpty) {
		logger.Log.Warnw("shoe exhausted mid-round, loading a fresh shoe", "room", t.Code, "round", t.Round)
		t.shoe = cards.NewShuffledShoe(t.opts.DeckCount, nil)
		c, _ = t.shoe.Draw()
	}
	return c
}

func (t *Table) clearRound() {
	for _, p := range t.Players {
		p.Hand = nil
		p.Score = 0
		p.Status = StatusNone
		p.dealtIn = false
	}
	t.DealerHand = nil
	t.DealerScore = 0
	t.CurrentTurn = ""
	t.Results = nil
	t.shoe = nil
}

// deal shuffles a fresh shoe and deals two passes: every connected player in
// seat order, then the dealer.
func (t *Table) deal() {
	t.clearRound()
	t.Round++
	t.shoe = t.opts.NewShoe(t.opts.DeckCount)

	for _, p := range t.Players {
		p.dealtIn = p.Connected
	}
	for pass := 0; pass < 2; pass++ {
		for _, p := range t.Players {
			if !p.dealtIn {
				continue
			}
			p.Hand = append(p.Hand, t.draw())
			p.Score = cards.HandValue(p.Hand)
		}
		t.DealerHand = append(t.DealerHand, t.draw())
		t.DealerScore = cards.HandValue(t.DealerHand)
	}

	for _, p := range t.Players {
		if p.dealtIn && cards.IsNatural(p.Hand) {
			p.Status = StatusBlackjack
		}
	}
	for _, p := range t.Players {
		if t.canAct(p) {
			t.CurrentTurn = p.ID
			break
		}
	}
}

// advanceTurn passes the turn to the next seat able to act, wrapping around to
// the current seat last. With nobody left the dealer plays.
func (t *Table) advanceTurn() error {
	n := len(t.Players)
	idx := t.seatOf(t.CurrentTurn)
	for i := 1; i <= n; i++ {
		p := t.Players[(idx+i+n)%n]
		if t.canAct(p) {
			t.CurrentTurn = p.ID
			return nil
		}
	}
	return t.machine.ChangeState(t.dealer)
}

func (t *Table) playDealer() {
	t.CurrentTurn = DealerTurn
	for cards.DealerShouldDraw(t.DealerScore) {
		t.DealerHand = append(t.DealerHand, t.draw())
		t.DealerScore = cards.HandValue(t.DealerHand)
	}
}

func (t *Table) settle() {
	t.CurrentTurn = ""
	dealerNatural := cards.IsNatural(t.DealerHand)
	dealerBust := t.DealerScore > 21

	result := RoundResult{
		RoomCode:    t.Code,
		Round:       t.Round,
		DealerHand:  append([]cards.Card(nil), t.DealerHand...),
		DealerScore: t.DealerScore,
	}
	t.Results = make(map[string]Outcome)
	for _, p := range t.Players {
		if !p.dealtIn {
			continue
		}
		outcome := Settle(p.Status, p.Score, dealerNatural, dealerBust, t.DealerScore)
		t.Results[p.ID] = outcome
		result.Players = append(result.Players, PlayerResult{
			PlayerID: p.ID,
			Name:     p.Name,
			Hand:     append([]cards.Card(nil), p.Hand...),
			Score:    p.Score,
			Status:   p.Status,
			Outcome:  outcome,
		})
	}

	if t.opts.OnSettled != nil {
		t.opts.OnSettled(result)
	}
}

// Settle decides one player's outcome against the dealer.
func Settle(status Status, score int, dealerNatural, dealerBust bool, dealerScore int) Outcome {
	switch {
	case status == StatusBlackjack:
		if dealerNatural {
			return OutcomePush
		}
		return OutcomeBlackjack
	case status == StatusBusted:
		return OutcomeBust
	case dealerNatural:
		return OutcomeLose
	case dealerBust:
		return OutcomeWin
	case score > dealerScore:
		return OutcomeWin
	case score < dealerScore:
		return OutcomeLose
	}
	return OutcomePush
}

func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = string([]rune(name)[:MaxNameLength])
	}
	if name == "" {
		return DefaultName
	}
	return name
}
