package cards

import (
	"math/rand"
	"testing"
)

func c(r Rank) Card { return Card{Suit: Spades, Rank: r} }

func TestHandValue(t *testing.T) {
	tests := []struct {
		name  string
		cards []Card
		want  int
	}{
		{name: "empty", cards: nil, want: 0},
		{name: "ace king", cards: []Card{c(Ace), c(King)}, want: 21},
		{name: "ace ace nine", cards: []Card{c(Ace), c(Ace), c("9")}, want: 21},
		{name: "king queen two", cards: []Card{c(King), c(Queen), c("2")}, want: 22},
		{name: "soft seventeen", cards: []Card{c(Ace), c("6")}, want: 17},
		{name: "four aces", cards: []Card{c(Ace), c(Ace), c(Ace), c(Ace)}, want: 14},
		{name: "ace reduces once", cards: []Card{c(Ace), c("9"), c("5")}, want: 15},
		{name: "ten counts ten", cards: []Card{c("10"), c(Jack)}, want: 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HandValue(tt.cards); got != tt.want {
				t.Fatalf("HandValue() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsNatural(t *testing.T) {
	if !IsNatural([]Card{c(Ace), c(Queen)}) {
		t.Error("ace queen should be a natural")
	}
	if IsNatural([]Card{c("7"), c("7"), c("7")}) {
		t.Error("three-card 21 is not a natural")
	}
	if IsNatural([]Card{c(King), c(Queen)}) {
		t.Error("20 is not a natural")
	}
}

func TestDealerShouldDraw(t *testing.T) {
	if !DealerShouldDraw(16) {
		t.Error("dealer must draw on 16")
	}
	if DealerShouldDraw(17) {
		t.Error("dealer must stand on 17")
	}
	soft17 := HandValue([]Card{c(Ace), c("6")})
	if DealerShouldDraw(soft17) {
		t.Error("dealer must stand on soft 17")
	}
}

func TestNewShoe(t *testing.T) {
	for n := 0; n <= 8; n++ {
		shoe := NewShoe(n)
		if len(shoe) != 52*n {
			t.Fatalf("NewShoe(%d) has %d cards, want %d", n, len(shoe), 52*n)
		}
		counts := make(map[Card]int)
		for _, card := range shoe {
			counts[card]++
		}
		if n > 0 && len(counts) != 52 {
			t.Fatalf("NewShoe(%d) has %d distinct cards, want 52", n, len(counts))
		}
		for card, got := range counts {
			if got != n {
				t.Fatalf("NewShoe(%d): %v appears %d times, want %d", n, card, got, n)
			}
		}
		for d := 0; d < n; d++ {
			seen := make(map[Card]bool)
			for _, card := range shoe[d*52 : (d+1)*52] {
				if seen[card] {
					t.Fatalf("deck %d of NewShoe(%d) repeats %v", d, n, card)
				}
				seen[card] = true
			}
		}
	}
}

func TestShuffle_PermutesCopy(t *testing.T) {
	deck := NewDeck()
	orig := make([]Card, len(deck))
	copy(orig, deck)

	out := Shuffle(deck, rand.New(rand.NewSource(42)))

	for i := range deck {
		if deck[i] != orig[i] {
			t.Fatal("Shuffle must not mutate its input")
		}
	}
	if len(out) != len(deck) {
		t.Fatalf("shuffled length = %d, want %d", len(out), len(deck))
	}
	counts := make(map[Card]int)
	for _, card := range out {
		counts[card]++
	}
	for _, card := range deck {
		if counts[card] != 1 {
			t.Fatalf("card %v appears %d times after shuffle", card, counts[card])
		}
	}

	again := Shuffle(deck, rand.New(rand.NewSource(42)))
	for i := range out {
		if out[i] != again[i] {
			t.Fatal("same seed should give the same order")
		}
	}
}

func TestShoe_DrawFromEnd(t *testing.T) {
	shoe := NewStackedShoe([]Card{c("2"), c("3")})
	first, err := shoe.Draw()
	if err != nil || first.Rank != "3" {
		t.Fatalf("first draw = %v, %v; want 3 of spades", first, err)
	}
	if shoe.Remaining() != 1 {
		t.Fatalf("Remaining() = %d, want 1", shoe.Remaining())
	}
	if _, err := shoe.Draw(); err != nil {
		t.Fatalf("second draw failed: %v", err)
	}
	if _, err := shoe.Draw(); err != ErrShoeEmpty {
		t.Fatalf("draw on empty shoe = %v, want ErrShoeEmpty", err)
	}
}

func TestNewShuffledShoe(t *testing.T) {
	shoe := NewShuffledShoe(DefaultDeckCount, nil)
	if shoe.Remaining() != 52*DefaultDeckCount {
		t.Fatalf("Remaining() = %d, want %d", shoe.Remaining(), 52*DefaultDeckCount)
	}
}
