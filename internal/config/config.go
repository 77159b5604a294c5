package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yml"

const (
	RepositorySQLite   = "sqlite"
	RepositoryPostgres = "postgres"
	RepositoryInMemory = "inmemory"
)

type Config struct {
	Discord    DiscordConfig    `yaml:"discord"`
	Database   DatabaseConfig   `yaml:"database"`
	Logging    LoggingConfig    `yaml:"logging"`
	Repository RepositoryConfig `yaml:"repository"`
	Dialogue   DialogueConfig   `yaml:"dialogue"`
	Reminder   ReminderConfig   `yaml:"reminder"`
	Server     ServerConfig     `yaml:"server"`
	Timezone   TimezoneConfig   `yaml:"timezone"`
}

type DiscordConfig struct {
	Token string `yaml:"token"`
	// пусто - бот слушает все каналы
	ChannelIDs []string `yaml:"channel_ids"`
	// сообщений в минуту от одного пользователя, 0 - без ограничения
	RateLimit int `yaml:"rate_limit"`
}

type DatabaseConfig struct {
	URL            string        `yaml:"url"`
	MaxConnections int32         `yaml:"max_connections"`
	MinConnections int32         `yaml:"min_connections"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
}

type LoggingConfig struct {
	Development bool `yaml:"development"`
}

type RepositoryConfig struct {
	Type       string `yaml:"type"` // "sqlite", "postgres" или "inmemory"
	SQLitePath string `yaml:"sqlite_path"`
}

type DialogueConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type ReminderConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Lead      time.Duration `yaml:"lead"`
	BatchSize int           `yaml:"batch_size"`
	// cron-выражение; если задано, используется вместо interval
	Schedule string `yaml:"schedule"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Host string `yaml:"host"`
}

// TimezoneConfig - даты пользователя всегда читаются в UTC со сдвигом на
// фиксированный timeparse.Offset; настраивается только поведение "今天".
type TimezoneConfig struct {
	ShiftToday bool `yaml:"shift_today"`
}

// Load читает .env (если есть), затем config.yml, затем переменные окружения.
// Отсутствующий файл конфигурации не ошибка: остаются значения по умолчанию.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env")

	if path == "" {
		path = DefaultPath
	}

	var cfg Config

	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		decoder := yaml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("ошибка парсинга %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("не могу открыть %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv("TODO_CHANNEL_ID"); v != "" {
		c.Discord.ChannelIDs = splitList(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("REPOSITORY_TYPE"); v != "" {
		c.Repository.Type = v
	}
}

func (c *Config) applyDefaults() {
	c.Repository.Type = strings.ToLower(strings.TrimSpace(c.Repository.Type))
	if c.Repository.Type == "" {
		c.Repository.Type = RepositorySQLite
	}
	if c.Repository.SQLitePath == "" {
		c.Repository.SQLitePath = "./todos.db"
	}
	if c.Database.MaxConnections == 0 {
		c.Database.MaxConnections = 10
	}
	if c.Database.IdleTimeout == 0 {
		c.Database.IdleTimeout = 5 * time.Minute
	}
	if c.Dialogue.Timeout == 0 {
		c.Dialogue.Timeout = 60 * time.Second
	}
	if c.Reminder.Interval == 0 {
		c.Reminder.Interval = time.Minute
	}
	if c.Reminder.Lead == 0 {
		c.Reminder.Lead = 30 * time.Minute
	}
	if c.Reminder.BatchSize == 0 {
		c.Reminder.BatchSize = 100
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
}

// Validate проверяет конфигурацию; requireToken нужен только для запуска бота.
func (c *Config) Validate(requireToken bool) error {
	var errs []error

	if requireToken && c.Discord.Token == "" {
		errs = append(errs, errors.New("discord.token не задан (DISCORD_TOKEN)"))
	}

	switch c.Repository.Type {
	case RepositorySQLite, RepositoryInMemory:
	case RepositoryPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url обязателен для postgres (DATABASE_URL)"))
		}
	default:
		errs = append(errs, fmt.Errorf("неизвестный тип репозитория %q", c.Repository.Type))
	}

	if c.Dialogue.Timeout < 0 {
		errs = append(errs, errors.New("dialogue.timeout должен быть положительным"))
	}
	if c.Reminder.Interval < 0 || c.Reminder.Lead < 0 {
		errs = append(errs, errors.New("reminder.interval и reminder.lead должны быть положительными"))
	}
	if c.Reminder.Schedule != "" {
		if _, err := cron.ParseStandard(c.Reminder.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("reminder.schedule: %w", err))
		}
	}
	if c.Reminder.BatchSize < 0 {
		errs = append(errs, errors.New("reminder.batch_size не может быть отрицательным"))
	}
	if c.Discord.RateLimit < 0 {
		errs = append(errs, errors.New("discord.rate_limit не может быть отрицательным"))
	}
	return errors.Join(errs...)
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
