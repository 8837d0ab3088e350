// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jason-s-yu/trivia/internal/game"
	"github.com/sirupsen/logrus"
)

// Config is shared by the server and the historian. Empty DATABASE_URL or
// REDIS_URL disables the matching integration in the server.
type Config struct {
	HTTPAddr  string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	PublicURL string `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`

	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	QueueName   string `env:"HISTORIAN_QUEUE_NAME" envDefault:"trivia_actions"`

	QuestionCSV string `env:"QUESTION_CSV"`

	MaxPlayers          int           `env:"MAX_PLAYERS" envDefault:"10"`
	QuestionTimeLimit   time.Duration `env:"QUESTION_TIME_LIMIT" envDefault:"30s"`
	AutoAdvanceDelay    time.Duration `env:"AUTO_ADVANCE_DELAY" envDefault:"5s"`
	RevealDwell         time.Duration `env:"REVEAL_DWELL" envDefault:"8s"`
	SprintGoal          int           `env:"SPRINT_GOAL" envDefault:"5"`
	SpeedBonusPerSecond int           `env:"SPEED_BONUS_PER_SECOND" envDefault:"2"`
	ExcludeDisconnected bool          `env:"EXCLUDE_DISCONNECTED" envDefault:"false"`
	ShuffleAnswers      bool          `env:"SHUFFLE_ANSWERS" envDefault:"true"`
	SafeAnswerStrategy  string        `env:"SAFE_ANSWER_STRATEGY" envDefault:"authored"`

	RoomIdleTimeout time.Duration `env:"ROOM_IDLE_TIMEOUT" envDefault:"2h"`
	TokenKeySeed    string        `env:"TOKEN_KEY_SEED"`
	TokenTTL        time.Duration `env:"TOKEN_TTL" envDefault:"12h"`
	WSWriteTimeout  time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"3s"`

	HistorianBatchSize     int           `env:"HISTORIAN_BATCH_SIZE" envDefault:"20"`
	HistorianFlushInterval time.Duration `env:"HISTORIAN_FLUSH_INTERVAL" envDefault:"500ms"`
}

// Load parses the environment.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}

// GameSettings maps the config onto room settings.
func (c *Config) GameSettings() (game.Settings, error) {
	s := game.DefaultSettings()
	s.MaxPlayers = c.MaxPlayers
	s.QuestionTimeLimit = c.QuestionTimeLimit
	s.AutoAdvanceDelay = c.AutoAdvanceDelay
	s.RevealDwell = c.RevealDwell
	if c.RevealDwell == 0 {
		s.RevealDwell = -1
	}
	s.SprintGoal = c.SprintGoal
	s.SpeedBonusPerSecond = c.SpeedBonusPerSecond
	s.ExcludeDisconnected = c.ExcludeDisconnected
	s.ShuffleAnswers = c.ShuffleAnswers

	switch c.SafeAnswerStrategy {
	case "authored", "":
		s.SafeAnswer = game.AuthoredSafeAnswer
	case "random":
		s.SafeAnswer = game.RandomSafeAnswer
	default:
		return game.Settings{}, fmt.Errorf("unknown SAFE_ANSWER_STRATEGY %q", c.SafeAnswerStrategy)
	}
	return s, nil
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parsing LOG_LEVEL: %w", err)
	}
	logger.SetLevel(level)
	switch c.LogFormat {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat)
	}
	return logger, nil
}
