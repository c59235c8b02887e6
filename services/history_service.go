// services/history_service.go
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wfunc/gamehub/logger"
	"github.com/wfunc/gamehub/models"
	"github.com/wfunc/gamehub/persistence"
	"github.com/wfunc/gamehub/state"
)

const (
	DefaultQueueSize    = 256
	DefaultWriteTimeout = 5 * time.Second
)

var ErrHistoryClosed = errors.New("history service closed")

// HistoryService 异步写入结算记录. Record never blocks the room that calls it.
type HistoryService struct {
	db           persistence.Database
	gameType     string
	writeTimeout time.Duration

	queue     chan *models.RoundRecord
	wg        sync.WaitGroup
	mutex     sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func NewHistoryService(db persistence.Database, gameType string, queueSize int) *HistoryService {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	s := &HistoryService{
		db:           db,
		gameType:     gameType,
		writeTimeout: DefaultWriteTimeout,
		queue:        make(chan *models.RoundRecord, queueSize),
	}
	s.wg.Add(1)
	go s.worker()
	return s
}

// Record queues a settled round. It reports false if the queue is full or
// the service is closed; the round is then dropped.
func (s *HistoryService) Record(result state.RoundResult) bool {
	record := toRecord(s.gameType, result)

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.queue <- record:
		return true
	default:
		logger.Log.Warnw("history queue full, round dropped", "room", result.RoomCode, "round", result.Round)
		return false
	}
}

func toRecord(gameType string, result state.RoundResult) *models.RoundRecord {
	record := &models.RoundRecord{
		RoomCode:    result.RoomCode,
		GameType:    gameType,
		Round:       result.Round,
		DealerHand:  result.DealerHand,
		DealerScore: result.DealerScore,
		SettledAt:   time.Now(),
	}
	for _, p := range result.Players {
		record.Players = append(record.Players, models.PlayerOutcome{
			PlayerID: p.PlayerID,
			Name:     p.Name,
			Hand:     p.Hand,
			Score:    p.Score,
			Status:   string(p.Status),
			Outcome:  string(p.Outcome),
		})
	}
	return record
}

func (s *HistoryService) worker() {
	defer s.wg.Done()
	for record := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		if err := s.db.SaveRoundRecord(ctx, record); err != nil {
			logger.Log.Errorw("save round record failed", "room", record.RoomCode, "round", record.Round, "error", err)
		}
		cancel()
	}
}

// GetPlayerStats 获取玩家统计
func (s *HistoryService) GetPlayerStats(ctx context.Context, playerID string) (*models.PlayerStats, error) {
	return s.db.GetPlayerStats(ctx, playerID)
}

// Close drains queued records and closes the database.
func (s *HistoryService) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mutex.Lock()
		s.closed = true
		close(s.queue)
		s.mutex.Unlock()

		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}
