// cards/cards.go
package cards

import (
	"math/rand"
	"strconv"
)

// Suit 花色
type Suit string

// Rank 牌面
type Rank string

const (
	Hearts   Suit = "hearts"
	Diamonds Suit = "diamonds"
	Clubs    Suit = "clubs"
	Spades   Suit = "spades"
)

const (
	Jack  Rank = "jack"
	Queen Rank = "queen"
	King  Rank = "king"
	Ace   Rank = "ace"
)

// DefaultDeckCount is the number of decks in a shoe unless configured otherwise.
const DefaultDeckCount = 4

var (
	Suits = []Suit{Hearts, Diamonds, Clubs, Spades}
	Ranks = []Rank{"2", "3", "4", "5", "6", "7", "8", "9", "10", Jack, Queen, King, Ace}
)

// Card is an immutable playing card. The rank travels as "value" on the wire.
type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"value"`
}

// FaceDown is the placeholder sent in place of an unrevealed card.
var FaceDown = Card{Suit: "back", Rank: "hidden"}

// Value 返回单张牌的基础点数, A 计 11
func (r Rank) Value() int {
	switch r {
	case Ace:
		return 11
	case Jack, Queen, King:
		return 10
	}
	n, err := strconv.Atoi(string(r))
	if err != nil {
		return 0
	}
	return n
}

// NewDeck returns one unshuffled 52-card deck, suit by suit.
func NewDeck() []Card {
	deck := make([]Card, 0, len(Suits)*len(Ranks))
	for _, s := range Suits {
		for _, r := range Ranks {
			deck = append(deck, Card{Suit: s, Rank: r})
		}
	}
	return deck
}

// NewShoe concatenates deckCount unshuffled decks.
func NewShoe(deckCount int) []Card {
	if deckCount < 0 {
		deckCount = 0
	}
	shoe := make([]Card, 0, deckCount*len(Suits)*len(Ranks))
	for i := 0; i < deckCount; i++ {
		shoe = append(shoe, NewDeck()...)
	}
	return shoe
}

// Shuffle returns a shuffled copy of cards. A nil rng uses the process-level source.
func Shuffle(cards []Card, rng *rand.Rand) []Card {
	out := make([]Card, len(cards))
	copy(out, cards)
	swap := func(i, j int) { out[i], out[j] = out[j], out[i] }
	if rng == nil {
		rand.Shuffle(len(out), swap)
	} else {
		rng.Shuffle(len(out), swap)
	}
	return out
}

// HandValue 计算手牌点数, 超过 21 时 A 逐张按 1 计
func HandValue(cards []Card) int {
	score, aces := 0, 0
	for _, c := range cards {
		if c.Rank == Ace {
			aces++
		}
		score += c.Rank.Value()
	}
	for score > 21 && aces > 0 {
		score -= 10
		aces--
	}
	return score
}

// IsNatural reports a two-card 21.
func IsNatural(cards []Card) bool {
	return len(cards) == 2 && HandValue(cards) == 21
}

// DealerShouldDraw is true below 17. The dealer stands on soft 17.
func DealerShouldDraw(value int) bool {
	return value < 17
}
