package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Game     GameConfig     `mapstructure:"game"`
	Room     RoomConfig     `mapstructure:"room"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddress    string   `mapstructure:"http_address"`
	RPCAddress     string   `mapstructure:"rpc_address"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	SendQueueSize  int      `mapstructure:"send_queue_size"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

type GameConfig struct {
	DeckCount  int `mapstructure:"deck_count"`
	MaxPlayers int `mapstructure:"max_players"` // 0 = unlimited
}

// RoomConfig 房间相关配置, 超时为 0 表示关闭
type RoomConfig struct {
	CodeLength  int           `mapstructure:"code_length"`
	MailboxSize int           `mapstructure:"mailbox_size"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	TurnTimeout time.Duration `mapstructure:"turn_timeout"`
}

type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"` // none / gorm / postgres
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":3000")
	v.SetDefault("server.rpc_address", "")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.send_queue_size", 64)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "gamehub")
	v.SetDefault("game.deck_count", 4)
	v.SetDefault("game.max_players", 0)
	v.SetDefault("room.code_length", 4)
	v.SetDefault("room.mailbox_size", 64)
	v.SetDefault("room.idle_timeout", time.Duration(0))
	v.SetDefault("room.turn_timeout", time.Duration(0))
	v.SetDefault("database.driver", "none")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "gamehub")
	v.SetDefault("log.development", false)
}

// Default returns the configuration used when no file or environment overrides are present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// LoadConfig reads config.yaml from path. A missing file falls back to defaults;
// GAMEHUB_* environment variables override both.
func LoadConfig(path string) (config *Config, err error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("gamehub")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	err = v.Unmarshal(&config)
	return
}
