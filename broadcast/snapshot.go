package broadcast

import (
	"github.com/wfunc/gamehub/cards"
	"github.com/wfunc/gamehub/state"
)

// PlayerView is one seat as every client sees it.
type PlayerView struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Hand      []cards.Card `json:"hand"`
	Score     int          `json:"score"`
	Status    *string      `json:"status"`
	Connected bool         `json:"connected"`
	IsHost    bool         `json:"isHost"`
}

// Snapshot is the player-safe rendering of a table.
type Snapshot struct {
	RoomCode    string                   `json:"roomCode"`
	Phase       state.Phase              `json:"phase"`
	Players     []PlayerView             `json:"players"`
	DealerHand  []cards.Card             `json:"dealerHand"`
	DealerScore int                      `json:"dealerScore"`
	CurrentTurn *string                  `json:"currentTurn"`
	Results     map[string]state.Outcome `json:"results"`
}

// Render copies the table into a Snapshot. While the round is in lobby or
// playing and the dealer holds two or more cards, everything after the up card
// is replaced by cards.FaceDown and the score covers the up card only.
func Render(t *state.Table) Snapshot {
	phase := t.Phase()
	snap := Snapshot{
		RoomCode:    t.Code,
		Phase:       phase,
		Players:     make([]PlayerView, 0, len(t.Players)),
		DealerHand:  make([]cards.Card, 0, len(t.DealerHand)),
		DealerScore: t.DealerScore,
		CurrentTurn: optional(t.CurrentTurn),
	}

	for _, p := range t.Players {
		snap.Players = append(snap.Players, PlayerView{
			ID:        p.ID,
			Name:      p.Name,
			Hand:      append(make([]cards.Card, 0, len(p.Hand)), p.Hand...),
			Score:     p.Score,
			Status:    optional(string(p.Status)),
			Connected: p.Connected,
			IsHost:    p.IsHost,
		})
	}

	hidden := (phase == state.PhaseLobby || phase == state.PhasePlaying) && len(t.DealerHand) >= 2
	if hidden {
		snap.DealerHand = append(snap.DealerHand, t.DealerHand[0])
		for range t.DealerHand[1:] {
			snap.DealerHand = append(snap.DealerHand, cards.FaceDown)
		}
		snap.DealerScore = cards.HandValue(t.DealerHand[:1])
	} else {
		snap.DealerHand = append(snap.DealerHand, t.DealerHand...)
	}

	if t.Results != nil {
		snap.Results = make(map[string]state.Outcome, len(t.Results))
		for id, o := range t.Results {
			snap.Results[id] = o
		}
	}
	return snap
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
