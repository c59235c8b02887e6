package cards

import (
	"errors"
	"math/rand"
)

var ErrShoeEmpty = errors.New("shoe is empty")

// Shoe is the stack a round deals from. Cards come off the end.
type Shoe struct {
	cards []Card
}

// NewShuffledShoe builds and shuffles a shoe of deckCount decks.
func NewShuffledShoe(deckCount int, rng *rand.Rand) *Shoe {
	return &Shoe{cards: Shuffle(NewShoe(deckCount), rng)}
}

// NewStackedShoe wraps cards as-is; the last card is drawn first.
func NewStackedShoe(cards []Card) *Shoe {
	out := make([]Card, len(cards))
	copy(out, cards)
	return &Shoe{cards: out}
}

func (s *Shoe) Draw() (Card, error) {
	if s == nil || len(s.cards) == 0 {
		return Card{}, ErrShoeEmpty
	}
	n := len(s.cards) - 1
	c := s.cards[n]
	s.cards = s.cards[:n]
	return c, nil
}

func (s *Shoe) Remaining() int {
	if s == nil {
		return 0
	}
	return len(s.cards)
}
