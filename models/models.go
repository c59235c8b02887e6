// models/models.go
package models

import (
	"time"

	"github.com/wfunc/gamehub/cards"
)

// RoundRecord 一局结算记录, 只追加
type RoundRecord struct {
	RoomCode    string          `json:"room_code"`
	GameType    string          `json:"game_type"`
	Round       int             `json:"round"`
	DealerHand  []cards.Card    `json:"dealer_hand"`
	DealerScore int             `json:"dealer_score"`
	Players     []PlayerOutcome `json:"players"`
	SettledAt   time.Time       `json:"settled_at"`
}

// PlayerOutcome 玩家信息（用于结算记录）
type PlayerOutcome struct {
	PlayerID string       `json:"player_id"`
	Name     string       `json:"name"`
	Hand     []cards.Card `json:"hand"`
	Score    int          `json:"score"`
	Status   string       `json:"status"`
	Outcome  string       `json:"outcome"` // win/lose/push/bust/blackjack
}

// PlayerStats 玩家统计信息
type PlayerStats struct {
	PlayerID    string `json:"player_id"`
	TotalRounds int    `json:"total_rounds"`
	Wins        int    `json:"wins"`
	Losses      int    `json:"losses"`
	Pushes      int    `json:"pushes"`
	Busts       int    `json:"busts"`
	Blackjacks  int    `json:"blackjacks"`
}

// Add counts n rounds ending in outcome.
func (s *PlayerStats) Add(outcome string, n int) {
	s.TotalRounds += n
	switch outcome {
	case "win":
		s.Wins += n
	case "lose":
		s.Losses += n
	case "push":
		s.Pushes += n
	case "bust":
		s.Busts += n
	case "blackjack":
		s.Blackjacks += n
	}
}
