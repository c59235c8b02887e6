// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"
	"github.com/wfunc/gamehub/models"
)

// PostgreSQL 数据库实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", DSN(host, port, user, password, dbname))
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 初始化表结构
	if err := initTables(ctx, db); err != nil {
		return nil, fmt.Errorf("init tables: %w", err)
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS round_records (
            id BIGSERIAL PRIMARY KEY,
            room_code VARCHAR(16) NOT NULL,
            game_type VARCHAR(100) NOT NULL,
            round INTEGER NOT NULL,
            dealer_hand JSONB NOT NULL,
            dealer_score INTEGER NOT NULL,
            settled_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS player_outcomes (
            id BIGSERIAL PRIMARY KEY,
            round_id BIGINT NOT NULL REFERENCES round_records(id),
            player_id VARCHAR(64) NOT NULL,
            name VARCHAR(64) NOT NULL,
            hand JSONB NOT NULL,
            score INTEGER NOT NULL,
            status VARCHAR(16) NOT NULL,
            outcome VARCHAR(16) NOT NULL
        )
    `)
	if err != nil {
		return err
	}

	// 创建索引以提高查询性能
	_, err = db.ExecContext(ctx, `
        CREATE INDEX IF NOT EXISTS idx_round_records_room_code ON round_records(room_code);
        CREATE INDEX IF NOT EXISTS idx_round_records_settled_at ON round_records(settled_at);
        CREATE INDEX IF NOT EXISTS idx_player_outcomes_player_id ON player_outcomes(player_id);
    `)

	return err
}

// SaveRoundRecord 保存结算记录
func (p *PostgreSQL) SaveRoundRecord(ctx context.Context, record *models.RoundRecord) error {
	dealerHand, err := json.Marshal(record.DealerHand)
	if err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var roundID int64
	err = tx.QueryRowContext(ctx, `
        INSERT INTO round_records (room_code, game_type, round, dealer_hand, dealer_score, settled_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `, record.RoomCode, record.GameType, record.Round, dealerHand, record.DealerScore, record.SettledAt).Scan(&roundID)
	if err != nil {
		return err
	}

	for _, po := range record.Players {
		hand, err := json.Marshal(po.Hand)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
            INSERT INTO player_outcomes (round_id, player_id, name, hand, score, status, outcome)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
        `, roundID, po.PlayerID, po.Name, hand, po.Score, po.Status, po.Outcome)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetPlayerStats 查询玩家统计
func (p *PostgreSQL) GetPlayerStats(ctx context.Context, playerID string) (*models.PlayerStats, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT outcome, COUNT(*) FROM player_outcomes WHERE player_id = $1 GROUP BY outcome`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &models.PlayerStats{PlayerID: playerID}
	for rows.Next() {
		var outcome string
		var total int
		if err := rows.Scan(&outcome, &total); err != nil {
			return nil, err
		}
		stats.Add(outcome, total)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if stats.TotalRounds == 0 {
		return nil, ErrRecordNotFound
	}
	return stats, nil
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
