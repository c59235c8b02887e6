package state

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/wfunc/gamehub/cards"
	"github.com/wfunc/gamehub/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func card(r cards.Rank) cards.Card { return cards.Card{Suit: cards.Hearts, Rank: r} }

// stackedShoe returns a shoe factory that deals order front to back.
func stackedShoe(order ...cards.Card) func(int) *cards.Shoe {
	return func(int) *cards.Shoe {
		rev := make([]cards.Card, len(order))
		for i, c := range order {
			rev[len(order)-1-i] = c
		}
		return cards.NewStackedShoe(rev)
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("p%d", n)
	}
}

func newTestTable(order ...cards.Card) *Table {
	return NewTable("ABCD", Options{
		NewShoe:     stackedShoe(order...),
		NewPlayerID: sequentialIDs(),
	})
}

func mustJoin(t *testing.T, table *Table, name string) *Player {
	t.Helper()
	p, _, err := table.Join("", name)
	if err != nil {
		t.Fatalf("Join(%s) failed: %v", name, err)
	}
	return p
}

func mustHandle(t *testing.T, table *Table, playerID string, action Action) {
	t.Helper()
	if err := table.Handle(playerID, action); err != nil {
		t.Fatalf("Handle(%s, %s) failed: %v", playerID, action, err)
	}
}

func ranks(hand []cards.Card) []cards.Rank {
	out := make([]cards.Rank, len(hand))
	for i, c := range hand {
		out[i] = c.Rank
	}
	return out
}

func TestJoin_FirstPlayerIsHost(t *testing.T) {
	table := newTestTable()
	a := mustJoin(t, table, "Ann")
	b := mustJoin(t, table, "Bob")

	if !a.IsHost || b.IsHost {
		t.Fatalf("host flags = %v/%v, want true/false", a.IsHost, b.IsHost)
	}
	if len(table.Players) != 2 || table.Players[0] != a || table.Players[1] != b {
		t.Fatal("players should be seated in join order")
	}
	if table.Phase() != PhaseLobby {
		t.Fatalf("new table phase = %s, want lobby", table.Phase())
	}
}

func TestJoin_Names(t *testing.T) {
	table := newTestTable()
	blank := mustJoin(t, table, "   ")
	long := mustJoin(t, table, strings.Repeat("é", 40))

	if blank.Name != DefaultName {
		t.Errorf("blank name = %q, want %q", blank.Name, DefaultName)
	}
	if got := len([]rune(long.Name)); got != MaxNameLength {
		t.Errorf("long name has %d runes, want %d", got, MaxNameLength)
	}
}

func TestJoin_ReconnectAndDuplicate(t *testing.T) {
	table := newTestTable()
	a := mustJoin(t, table, "Ann")

	if _, _, err := table.Join(a.ID, "Ann again"); err != ErrAlreadyInGame {
		t.Fatalf("joining as a connected player = %v, want ErrAlreadyInGame", err)
	}

	table.Disconnect(a.ID)
	p, rejoined, err := table.Join(a.ID, "Annie")
	if err != nil || !rejoined || p != a {
		t.Fatalf("reconnect = %v, %v, %v", p, rejoined, err)
	}
	if a.Name != "Annie" || !a.Connected {
		t.Fatalf("reconnect should rename and mark connected, got %+v", a)
	}
	if len(table.Players) != 1 {
		t.Fatalf("reconnect should not add a seat, have %d", len(table.Players))
	}

	unknown, rejoined, err := table.Join("stale-id", "Cat")
	if err != nil || rejoined || unknown.ID == "stale-id" || unknown.IsHost {
		t.Fatalf("unknown id should create a fresh non-host seat, got %+v, %v, %v", unknown, rejoined, err)
	}
}

func TestJoin_TableFull(t *testing.T) {
	table := NewTable("ABCD", Options{MaxPlayers: 1, NewPlayerID: sequentialIDs()})
	a := mustJoin(t, table, "Ann")
	if _, _, err := table.Join("", "Bob"); err != ErrTableFull {
		t.Fatalf("second join = %v, want ErrTableFull", err)
	}
	table.Disconnect(a.ID)
	if _, _, err := table.Join(a.ID, "Ann"); err != nil {
		t.Fatalf("reconnect to a full table should succeed: %v", err)
	}
}

func TestStartRound_DealOrder(t *testing.T) {
	table := newTestTable(
		card("10"), card("9"), card("5"), // pass 1: A, B, dealer
		card("7"), card("8"), card(cards.King), // pass 2
	)
	a := mustJoin(t, table, "A")
	b := mustJoin(t, table, "B")

	mustHandle(t, table, a.ID, ActionStartRound)

	if table.Phase() != PhasePlaying {
		t.Fatalf("phase = %s, want playing", table.Phase())
	}
	if got := ranks(a.Hand); !reflect.DeepEqual(got, []cards.Rank{"10", "7"}) {
		t.Errorf("A hand = %v", got)
	}
	if got := ranks(b.Hand); !reflect.DeepEqual(got, []cards.Rank{"9", "8"}) {
		t.Errorf("B hand = %v", got)
	}
	if got := ranks(table.DealerHand); !reflect.DeepEqual(got, []cards.Rank{"5", cards.King}) {
		t.Errorf("dealer hand = %v", got)
	}
	if a.Score != 17 || b.Score != 17 || table.DealerScore != 15 {
		t.Errorf("scores = %d/%d/%d, want 17/17/15", a.Score, b.Score, table.DealerScore)
	}
	if table.CurrentTurn != a.ID {
		t.Errorf("current turn = %s, want %s", table.CurrentTurn, a.ID)
	}
	if table.Results != nil {
		t.Error("results must be nil while playing")
	}
}

func TestStartRound_Rejections(t *testing.T) {
	table := newTestTable(card("2"), card("3"), card("4"), card("5"), card("6"), card("7"))
	a := mustJoin(t, table, "A")
	b := mustJoin(t, table, "B")

	if err := table.Handle(b.ID, ActionStartRound); err != ErrNotHostStart {
		t.Fatalf("non-host start = %v, want ErrNotHostStart", err)
	}
	if table.Phase() != PhaseLobby || len(a.Hand) != 0 {
		t.Fatal("a rejected start must not deal")
	}
	if err := table.Handle("ghost", ActionStartRound); err != ErrNotJoined {
		t.Fatalf("unknown player = %v, want ErrNotJoined", err)
	}
	if err := table.Handle(a.ID, ActionHit); err != ErrNotPlayPhase {
		t.Fatalf("hit in lobby = %v, want ErrNotPlayPhase", err)
	}

	mustHandle(t, table, a.ID, ActionStartRound)
	if err := table.Handle(a.ID, ActionStartRound); err != ErrRoundStarted {
		t.Fatalf("second start = %v, want ErrRoundStarted", err)
	}
	if err := table.Handle(a.ID, Action("double")); err != ErrUnknownAction {
		t.Fatalf("unknown action = %v, want ErrUnknownAction", err)
	}
}

func TestNaturalSkipsTurn(t *testing.T) {
	table := newTestTable(
		card(cards.Ace), card("9"), card("5"),
		card(cards.King), card("8"), card("10"),
	)
	a := mustJoin(t, table, "A")
	b := mustJoin(t, table, "B")
	mustHandle(t, table, a.ID, ActionStartRound)

	if a.Status != StatusBlackjack {
		t.Fatalf("A status = %q, want blackjack", a.Status)
	}
	if table.CurrentTurn != b.ID {
		t.Fatalf("turn should skip the natural, got %s", table.CurrentTurn)
	}
	if err := table.Handle(a.ID, ActionHit); err != ErrNotYourTurn {
		t.Fatalf("natural player hitting = %v, want ErrNotYourTurn", err)
	}
}

func TestAllNaturalsGoStraightToDealer(t *testing.T) {
	table := newTestTable(
		card(cards.Ace), card("9"),
		card(cards.King), card("8"),
	)
	a := mustJoin(t, table, "A")
	mustHandle(t, table, a.ID, ActionStartRound)

	if table.Phase() != PhaseResults {
		t.Fatalf("phase = %s, want results", table.Phase())
	}
	if table.Results[a.ID] != OutcomeBlackjack {
		t.Fatalf("A outcome = %q, want blackjack", table.Results[a.ID])
	}
	if table.CurrentTurn != "" {
		t.Fatalf("current turn should be empty in results, got %q", table.CurrentTurn)
	}
}

// Two players in ABCD; A is dealt a natural, the dealer a non-natural, and the
// dealer plays out under stand-on-17 after B acts.
func TestScenario_NaturalAgainstDealer(t *testing.T) {
	table := newTestTable(
		card(cards.Ace), card("10"), card("6"), // A, B, dealer up
		card(cards.King), card("7"), card("5"), // A, B, dealer hole: dealer 11
		// dealer draws 3 (14), 2 (16), then ace for soft 17 and stands
		card("3"), card("2"), card(cards.Ace),
	)
	a := mustJoin(t, table, "A")
	b := mustJoin(t, table, "B")
	mustHandle(t, table, a.ID, ActionStartRound)

	if table.CurrentTurn != b.ID {
		t.Fatalf("B should act first, turn = %s", table.CurrentTurn)
	}
	mustHandle(t, table, b.ID, ActionStand)

	if table.Phase() != PhaseResults {
		t.Fatalf("phase = %s, want results", table.Phase())
	}
	if table.DealerScore != 17 || len(table.DealerHand) != 5 {
		t.Fatalf("dealer = %v (%d), want five cards to 17", ranks(table.DealerHand), table.DealerScore)
	}
	if table.Results[a.ID] != OutcomeBlackjack {
		t.Errorf("A = %q, want blackjack", table.Results[a.ID])
	}
	if table.Results[b.ID] != OutcomePush {
		t.Errorf("B 17 against dealer 17 = %q, want push", table.Results[b.ID])
	}
}

func TestHitBustAdvancesTurn(t *testing.T) {
	table := newTestTable(
		card("10"), card("9"), card("5"),
		card("6"), card("8"), card(cards.King),
		card(cards.Queen), // A busts at 26
	)
	a := mustJoin(t, table, "A")
	b := mustJoin(t, table, "B")
	mustHandle(t, table, a.ID, ActionStartRound)

	mustHandle(t, table, a.ID, ActionHit)

	if a.Status != StatusBusted || a.Score != 26 {
		t.Fatalf("A = %q/%d, want busted/26", a.Status, a.Score)
	}
	if table.CurrentTurn != b.ID {
		t.Fatalf("turn = %s, want B", table.CurrentTurn)
	}
	if table.Phase() != PhasePlaying {
		t.Fatalf("phase = %s, want playing", table.Phase())
	}
}

func TestTurnScan_SkipsFinishedAndWraps(t *testing.T) {
	two := card("2")
	order := []cards.Card{}
	for i := 0; i < 2; i++ {
		order = append(order, two, two, two, two, card("10"))
	}
	order = append(order, two, two) // hits for p1 and p4
	table := newTestTable(order...)
	p1 := mustJoin(t, table, "one")
	p2 := mustJoin(t, table, "two")
	p3 := mustJoin(t, table, "three")
	p4 := mustJoin(t, table, "four")
	mustHandle(t, table, p1.ID, ActionStartRound)

	p2.Status = StatusBusted
	p3.Status = StatusStood

	mustHandle(t, table, p1.ID, ActionHit)
	if table.CurrentTurn != p4.ID {
		t.Fatalf("after p1 acts turn = %s, want p4", table.CurrentTurn)
	}
	mustHandle(t, table, p4.ID, ActionHit)
	if table.CurrentTurn != p1.ID {
		t.Fatalf("after p4 acts turn = %s, want wrap to p1", table.CurrentTurn)
	}
	mustHandle(t, table, p1.ID, ActionStand)
	if table.CurrentTurn != p4.ID {
		t.Fatalf("after p1 stands turn = %s, want p4", table.CurrentTurn)
	}
	mustHandle(t, table, p4.ID, ActionStand)
	if table.Phase() != PhaseResults {
		t.Fatalf("with nobody left to act phase = %s, want results", table.Phase())
	}
}

func TestRejectedActionLeavesStateUnchanged(t *testing.T) {
	table := newTestTable(
		card("10"), card("9"), card("5"),
		card("6"), card("8"), card(cards.King),
	)
	a := mustJoin(t, table, "A")
	b := mustJoin(t, table, "B")
	mustHandle(t, table, a.ID, ActionStartRound)

	before := fmt.Sprintf("%+v %+v %v %d %s", *a, *b, table.DealerHand, table.DealerScore, table.CurrentTurn)
	if err := table.Handle(b.ID, ActionHit); err != ErrNotYourTurn {
		t.Fatalf("out of turn = %v, want ErrNotYourTurn", err)
	}
	if err := table.Handle(b.ID, ActionReset); err != ErrNotHostReset {
		t.Fatalf("non-host reset = %v, want ErrNotHostReset", err)
	}
	after := fmt.Sprintf("%+v %+v %v %d %s", *a, *b, table.DealerHand, table.DealerScore, table.CurrentTurn)
	if before != after {
		t.Fatalf("rejected actions changed state:\n%s\n%s", before, after)
	}
}

func TestReset(t *testing.T) {
	table := newTestTable(
		card("10"), card("5"), card("6"), card(cards.King), card("2"),
	)
	a := mustJoin(t, table, "A")
	mustHandle(t, table, a.ID, ActionStartRound)
	mustHandle(t, table, a.ID, ActionStand)
	if table.Phase() != PhaseResults {
		t.Fatalf("phase = %s, want results", table.Phase())
	}

	mustHandle(t, table, a.ID, ActionReset)

	if table.Phase() != PhaseLobby {
		t.Fatalf("phase after reset = %s, want lobby", table.Phase())
	}
	if len(a.Hand) != 0 || a.Score != 0 || a.Status != StatusNone {
		t.Fatalf("player not cleared: %+v", a)
	}
	if table.DealerHand != nil || table.DealerScore != 0 || table.Results != nil || table.CurrentTurn != "" {
		t.Fatal("dealer/results not cleared")
	}
	if len(table.Players) != 1 {
		t.Fatal("reset must keep players")
	}
	mustHandle(t, table, a.ID, ActionReset) // allowed in lobby too
}

func TestReconnectMidRound(t *testing.T) {
	table := newTestTable(
		card("10"), card("9"), card("5"),
		card("6"), card("8"), card(cards.King),
		card("2"),
	)
	a := mustJoin(t, table, "A")
	b := mustJoin(t, table, "B")
	mustHandle(t, table, a.ID, ActionStartRound)

	hand := ranks(a.Hand)
	table.Disconnect(a.ID)
	if table.CurrentTurn != a.ID {
		t.Fatalf("a disconnect must not move the turn, got %s", table.CurrentTurn)
	}

	p, rejoined, err := table.Join(a.ID, "A")
	if err != nil || !rejoined || p != a {
		t.Fatalf("rejoin failed: %v", err)
	}
	if !reflect.DeepEqual(ranks(a.Hand), hand) || a.Score != 16 || a.Status != StatusNone {
		t.Fatalf("hand changed across reconnect: %+v", a)
	}
	if table.Players[0] != a {
		t.Fatal("seat changed across reconnect")
	}
	mustHandle(t, table, a.ID, ActionHit)
	if table.CurrentTurn != b.ID {
		t.Fatalf("turn = %s, want B", table.CurrentTurn)
	}
}

func TestDisconnectedPlayerSkipped(t *testing.T) {
	table := newTestTable(
		card("10"), card("9"), card("8"), card("5"),
		card("6"), card("7"), card("8"), card(cards.King),
	)
	a := mustJoin(t, table, "A")
	b := mustJoin(t, table, "B")
	c := mustJoin(t, table, "C")
	mustHandle(t, table, a.ID, ActionStartRound)

	table.Disconnect(b.ID)
	mustHandle(t, table, a.ID, ActionStand)
	if table.CurrentTurn != c.ID {
		t.Fatalf("turn = %s, want C (B is away)", table.CurrentTurn)
	}
}

func TestLateJoinerSitsOut(t *testing.T) {
	table := newTestTable(
		card("10"), card("5"), card("6"), card(cards.King),
	)
	a := mustJoin(t, table, "A")
	mustHandle(t, table, a.ID, ActionStartRound)
	late := mustJoin(t, table, "Late")

	mustHandle(t, table, a.ID, ActionStand)

	if table.Phase() != PhaseResults {
		t.Fatalf("phase = %s, want results", table.Phase())
	}
	if _, ok := table.Results[late.ID]; ok {
		t.Fatal("a player who was not dealt in should have no result")
	}
	if late.DealtIn() {
		t.Fatal("late joiner should not be dealt in")
	}
}

func TestDisconnectedAtDealNotDealt(t *testing.T) {
	table := newTestTable(
		card("10"), card("5"), card("6"), card(cards.King),
	)
	a := mustJoin(t, table, "A")
	b := mustJoin(t, table, "B")
	table.Disconnect(b.ID)
	mustHandle(t, table, a.ID, ActionStartRound)

	if len(b.Hand) != 0 {
		t.Fatalf("disconnected player dealt %v", ranks(b.Hand))
	}
	if got := ranks(table.DealerHand); !reflect.DeepEqual(got, []cards.Rank{"5", cards.King}) {
		t.Fatalf("dealer hand = %v", got)
	}
}

func TestTimeoutTurn(t *testing.T) {
	table := newTestTable(
		card("10"), card("9"), card("5"),
		card("6"), card("8"), card(cards.King),
	)
	a := mustJoin(t, table, "A")
	b := mustJoin(t, table, "B")
	mustHandle(t, table, a.ID, ActionStartRound)

	if table.TimeoutTurn(b.ID) {
		t.Fatal("timeout for a player without the turn should be ignored")
	}
	if !table.TimeoutTurn(a.ID) {
		t.Fatal("timeout for the current player should apply")
	}
	if a.Status != StatusStood || table.CurrentTurn != b.ID {
		t.Fatalf("after timeout A=%q turn=%s", a.Status, table.CurrentTurn)
	}
}

func TestShoeExhaustionLoadsFreshShoe(t *testing.T) {
	table := newTestTable(card("10"), card("5"), card("6")) // one card short
	a := mustJoin(t, table, "A")
	mustHandle(t, table, a.ID, ActionStartRound)

	if len(table.DealerHand) != 2 || len(a.Hand) != 2 {
		t.Fatalf("deal should complete from a fresh shoe, dealer=%d player=%d", len(table.DealerHand), len(a.Hand))
	}
}

func TestOnSettled(t *testing.T) {
	var got []RoundResult
	table := NewTable("ABCD", Options{
		NewShoe:     stackedShoe(card("10"), card("9"), card("5"), card(cards.King)),
		NewPlayerID: sequentialIDs(),
		OnSettled:   func(r RoundResult) { got = append(got, r) },
	})
	a := mustJoin(t, table, "A")
	mustHandle(t, table, a.ID, ActionStartRound)
	mustHandle(t, table, a.ID, ActionStand)

	if len(got) != 1 {
		t.Fatalf("OnSettled called %d times, want 1", len(got))
	}
	r := got[0]
	if r.RoomCode != "ABCD" || r.Round != 1 || r.DealerScore != 19 {
		t.Fatalf("unexpected round result %+v", r)
	}
	if len(r.Players) != 1 || r.Players[0].Outcome != OutcomeLose || r.Players[0].Score != 15 {
		t.Fatalf("unexpected player results %+v", r.Players)
	}
}

func TestSettle(t *testing.T) {
	tests := []struct {
		name          string
		status        Status
		score         int
		dealerNatural bool
		dealerBust    bool
		dealerScore   int
		want          Outcome
	}{
		{"blackjack beats dealer", StatusBlackjack, 21, false, false, 20, OutcomeBlackjack},
		{"blackjack pushes natural", StatusBlackjack, 21, true, false, 21, OutcomePush},
		{"bust loses even if dealer busts", StatusBusted, 25, false, true, 24, OutcomeBust},
		{"dealer natural beats 21", StatusStood, 21, true, false, 21, OutcomeLose},
		{"dealer bust", StatusStood, 12, false, true, 23, OutcomeWin},
		{"higher wins", StatusStood, 20, false, false, 18, OutcomeWin},
		{"lower loses", StatusStood, 17, false, false, 19, OutcomeLose},
		{"tie pushes", StatusNone, 18, false, false, 18, OutcomePush},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Settle(tt.status, tt.score, tt.dealerNatural, tt.dealerBust, tt.dealerScore)
			if got != tt.want {
				t.Fatalf("Settle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDealerState_LogsRejectedTransition(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	prev := logger.Log
	logger.Log = zap.New(core).Sugar()
	defer func() { logger.Log = prev }()

	table := newTestTable()
	table.shoe = cards.NewStackedShoe([]cards.Card{card("10"), card("8")})
	// dealer -> results not registered
	table.machine = &BaseStateMachine{
		currentState: table.dealer,
		transitions:  map[Phase]map[Phase]func() bool{PhaseDealer: {PhaseLobby: nil}},
	}
	table.dealer.OnEnter()

	if table.Phase() != PhaseDealer {
		t.Fatalf("phase = %s, want dealer", table.Phase())
	}
	if table.DealerScore != 18 {
		t.Fatalf("dealer should still play out, score = %d", table.DealerScore)
	}
	if n := logs.FilterMessage("dealer could not reach results").Len(); n != 1 {
		t.Fatalf("logged %d errors, want 1", n)
	}
}
