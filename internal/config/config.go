package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Game     GameConfig     `mapstructure:"game"`
	Referee  RefereeConfig  `mapstructure:"referee"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Bus      BusConfig      `mapstructure:"bus"`
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

// SyncConfig tunes the state synchronizer. OwnerID defaults to hostname-pid when empty.
type SyncConfig struct {
	OwnerID           string        `mapstructure:"ownerId"`
	ConflictWindow    time.Duration `mapstructure:"conflictWindow"`
	CacheTTL          time.Duration `mapstructure:"cacheTTL"`
	ReconcileInterval time.Duration `mapstructure:"reconcileInterval"`
	StoreTimeout      time.Duration `mapstructure:"storeTimeout"`
	StateTTL          time.Duration `mapstructure:"stateTTL"`
	MaxWriteAttempts  int           `mapstructure:"maxWriteAttempts"`
}

type GameConfig struct {
	MinPlayers             int           `mapstructure:"minPlayers"`
	MaxPlayers             int           `mapstructure:"maxPlayers"`
	RoleRevealDuration     time.Duration `mapstructure:"roleRevealDuration"`
	NightDuration          time.Duration `mapstructure:"nightDuration"`
	DayDuration            time.Duration `mapstructure:"dayDuration"`
	VotingDuration         time.Duration `mapstructure:"votingDuration"`
	TrialDuration          time.Duration `mapstructure:"trialDuration"`
	Retention              time.Duration `mapstructure:"retention"`
	SkillVarianceThreshold float64       `mapstructure:"skillVarianceThreshold"`
}

type RefereeConfig struct {
	CooldownDuration time.Duration `mapstructure:"cooldownDuration"`
	TimeoutDuration  time.Duration `mapstructure:"timeoutDuration"`
	HistoryWindow    int           `mapstructure:"historyWindow"`
}

type EngineConfig struct {
	RetryMaxElapsed time.Duration `mapstructure:"retryMaxElapsed"`
	RetryMaxTries   uint          `mapstructure:"retryMaxTries"`
	ActionsPerSec   float64       `mapstructure:"actionsPerSec"`
	ActionBurst     int           `mapstructure:"actionBurst"`
}

type BusConfig struct {
	Driver string `mapstructure:"driver"` // redis, local
}

var GlobalConfig *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("jwt.expire", 24)

	v.SetDefault("sync.conflictWindow", 30*time.Second)
	v.SetDefault("sync.cacheTTL", 30*time.Second)
	v.SetDefault("sync.reconcileInterval", 5*time.Second)
	v.SetDefault("sync.storeTimeout", 2*time.Second)
	v.SetDefault("sync.stateTTL", 24*time.Hour)
	v.SetDefault("sync.maxWriteAttempts", 5)

	v.SetDefault("game.minPlayers", 4)
	v.SetDefault("game.maxPlayers", 15)
	v.SetDefault("game.roleRevealDuration", 10*time.Second)
	v.SetDefault("game.nightDuration", 45*time.Second)
	v.SetDefault("game.dayDuration", 90*time.Second)
	v.SetDefault("game.votingDuration", 45*time.Second)
	v.SetDefault("game.trialDuration", 20*time.Second)
	v.SetDefault("game.retention", time.Hour)
	v.SetDefault("game.skillVarianceThreshold", 0.05)

	v.SetDefault("referee.cooldownDuration", time.Minute)
	v.SetDefault("referee.timeoutDuration", 3*time.Minute)
	v.SetDefault("referee.historyWindow", 50)

	v.SetDefault("engine.retryMaxElapsed", 2*time.Second)
	v.SetDefault("engine.retryMaxTries", 4)
	v.SetDefault("engine.actionsPerSec", 5.0)
	v.SetDefault("engine.actionBurst", 10)

	v.SetDefault("bus.driver", "redis")
}

// Load reads path (YAML) with PARTY_* environment overrides. A missing file falls back to defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("PARTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !strings.Contains(err.Error(), "no such file") {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadConfig(path string) {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("Error reading config file, %s", err)
	}
	GlobalConfig = cfg
}
