// persistence/interface.go
package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/wfunc/gamehub/models"
)

// Database 数据库接口. Stores settled rounds; rooms themselves are never persisted.
type Database interface {
	SaveRoundRecord(ctx context.Context, record *models.RoundRecord) error
	GetPlayerStats(ctx context.Context, playerID string) (*models.PlayerStats, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
)

// DSN builds a lib/pq style connection string.
func DSN(host string, port int, user, password, dbname string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
}
