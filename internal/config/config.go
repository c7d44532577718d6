package config

import (
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Game     GameConfig     `mapstructure:"game"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int    `mapstructure:"expire"` // hours
}

// GameConfig carries engine policy knobs that are deployment choices, not
// rules of the game.
type GameConfig struct {
	MinPlayers       int    `mapstructure:"minPlayers"`       // minimum ready players to start a hand
	TurnSeconds      int    `mapstructure:"turnSeconds"`      // 0 disables the turn timer
	TimeoutPolicy    string `mapstructure:"timeoutPolicy"`    // autopass / pause
	DefaultStakeBase int64  `mapstructure:"defaultStakeBase"` // bet unit when no stake row matches

	// PayoutMultiples maps player count to the signed per-place bet-unit
	// multiples. Rows must sum to zero. Counts without a row use the
	// engine's built-in table.
	PayoutMultiples map[int][]int64 `mapstructure:"payoutMultiples"`
}

var GlobalConfig *Config

func LoadConfig(path string) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file, %s", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}
	applyDefaults(&cfg)
	GlobalConfig = &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Game.MinPlayers <= 0 {
		cfg.Game.MinPlayers = 2
	}
	if cfg.Game.TimeoutPolicy == "" {
		cfg.Game.TimeoutPolicy = "autopass"
	}
	if cfg.Game.DefaultStakeBase <= 0 {
		cfg.Game.DefaultStakeBase = 5_000
	}
}
