// models/gorm_models.go
package models

import (
	"time"

	"github.com/wfunc/gamehub/cards"
	"gorm.io/gorm"
)

// GormRoundRecord 结算记录模型
type GormRoundRecord struct {
	gorm.Model
	RoomCode    string       `gorm:"index;not null"`
	GameType    string       `gorm:"not null"`
	Round       int          `gorm:"not null"`
	DealerHand  []cards.Card `gorm:"serializer:json"`
	DealerScore int
	SettledAt   time.Time           `gorm:"index"`
	Outcomes    []GormPlayerOutcome `gorm:"foreignKey:RoundID"`
}

func (GormRoundRecord) TableName() string { return "round_records" }

// GormPlayerOutcome 单个玩家在一局中的结果
type GormPlayerOutcome struct {
	gorm.Model
	RoundID  uint         `gorm:"index;not null"`
	PlayerID string       `gorm:"index;not null"`
	Name     string       `gorm:"not null"`
	Hand     []cards.Card `gorm:"serializer:json"`
	Score    int
	Status   string
	Outcome  string `gorm:"not null"`
}

func (GormPlayerOutcome) TableName() string { return "player_outcomes" }

// NewGormRoundRecord converts a record for storage.
func NewGormRoundRecord(r *RoundRecord) *GormRoundRecord {
	g := &GormRoundRecord{
		RoomCode:    r.RoomCode,
		GameType:    r.GameType,
		Round:       r.Round,
		DealerHand:  r.DealerHand,
		DealerScore: r.DealerScore,
		SettledAt:   r.SettledAt,
	}
	for _, p := range r.Players {
		g.Outcomes = append(g.Outcomes, GormPlayerOutcome{
			PlayerID: p.PlayerID,
			Name:     p.Name,
			Hand:     p.Hand,
			Score:    p.Score,
			Status:   p.Status,
			Outcome:  p.Outcome,
		})
	}
	return g
}
