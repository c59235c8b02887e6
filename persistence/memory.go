package persistence

import (
	"context"
	"sync"

	"github.com/wfunc/gamehub/models"
)

// MemoryStore keeps round history in process memory. It is the store used
// when no database is configured, and in tests.
type MemoryStore struct {
	mutex   sync.RWMutex
	records []models.RoundRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) SaveRoundRecord(ctx context.Context, record *models.RoundRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.records = append(m.records, *record)
	return nil
}

func (m *MemoryStore) GetPlayerStats(ctx context.Context, playerID string) (*models.PlayerStats, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	stats := &models.PlayerStats{PlayerID: playerID}
	for _, r := range m.records {
		for _, p := range r.Players {
			if p.PlayerID == playerID {
				stats.Add(p.Outcome, 1)
			}
		}
	}
	if stats.TotalRounds == 0 {
		return nil, ErrRecordNotFound
	}
	return stats, nil
}

// Records returns a copy of everything stored.
func (m *MemoryStore) Records() []models.RoundRecord {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return append([]models.RoundRecord(nil), m.records...)
}

func (m *MemoryStore) Close() error { return nil }
