// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/wfunc/gamehub/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold: time.Second, // 慢SQL阈值
			LogLevel:      logger.Warn, // 日志级别
			Colorful:      false,       // 禁用彩色打印
		},
	)

	db, err := gorm.Open(postgres.Open(DSN(host, port, user, password, dbname)), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	// 获取通用数据库对象 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(&models.GormRoundRecord{}, &models.GormPlayerOutcome{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &GormPostgreSQL{db: db}, nil
}

// SaveRoundRecord 保存结算记录, 一局和所有玩家结果在同一事务内
func (p *GormPostgreSQL) SaveRoundRecord(ctx context.Context, record *models.RoundRecord) error {
	row := models.NewGormRoundRecord(record)
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		outcomes := row.Outcomes
		row.Outcomes = nil
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		if len(outcomes) == 0 {
			return nil
		}
		for i := range outcomes {
			outcomes[i].RoundID = row.ID
		}
		return tx.Create(&outcomes).Error
	})
}

// GetPlayerStats 按结果分组统计
func (p *GormPostgreSQL) GetPlayerStats(ctx context.Context, playerID string) (*models.PlayerStats, error) {
	var rows []struct {
		Outcome string
		Total   int
	}
	err := p.db.WithContext(ctx).
		Model(&models.GormPlayerOutcome{}).
		Select("outcome, COUNT(*) AS total").
		Where("player_id = ?", playerID).
		Group("outcome").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrRecordNotFound
	}

	stats := &models.PlayerStats{PlayerID: playerID}
	for _, r := range rows {
		stats.Add(r.Outcome, r.Total)
	}
	return stats, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
