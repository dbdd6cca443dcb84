package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Backend     BackendConfig
	Transfer    TransferConfig
	Sync        SyncConfig
	Scheduler   SchedulerConfig
	Redis       RedisConfig
	Artifacts   ArtifactConfig
	Utilization UtilizationConfig
}

type ServerConfig struct {
	Port string
	Host string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	// ScheduleStore selects the schedule repository: memory or postgres
	ScheduleStore string
}

type BackendConfig struct {
	BaseURL            string
	Timeout            int
	BreakerMaxFailures int
	BreakerTimeout     time.Duration
}

type TransferConfig struct {
	TickInterval   time.Duration
	Step           int
	TriggerTimeout time.Duration
}

type SyncConfig struct {
	Interval time.Duration
}

type SchedulerConfig struct {
	Timezone    string
	Locking     bool
	LockBackend string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ArtifactConfig struct {
	Dir string
}

type UtilizationConfig struct {
	Interval time.Duration
	Samples  int
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "localhost"),
		},
		Database: DatabaseConfig{
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnv("DB_PORT", "5432"),
			User:          getEnv("DB_USER", "sentinel"),
			Password:      getEnv("DB_PASSWORD", "sentinel"),
			DBName:        getEnv("DB_NAME", "sentinel_core"),
			SSLMode:       getEnv("DB_SSLMODE", "disable"),
			ScheduleStore: strings.ToLower(getEnv("SCHEDULE_STORE", "memory")),
		},
		Backend: BackendConfig{
			BaseURL:            getEnv("BACKEND_URL", "http://localhost:5000"),
			Timeout:            getEnvAsInt("BACKEND_TIMEOUT", 5),
			BreakerMaxFailures: getEnvAsInt("BREAKER_MAX_FAILURES", 5),
			BreakerTimeout:     getEnvAsDuration("BREAKER_TIMEOUT", 30*time.Second),
		},
		Transfer: TransferConfig{
			TickInterval:   time.Duration(getEnvAsInt("TRANSFER_TICK_MS", 600)) * time.Millisecond,
			Step:           getEnvAsInt("TRANSFER_STEP", 10),
			TriggerTimeout: getEnvAsDuration("TRANSFER_TRIGGER_TIMEOUT", 10*time.Second),
		},
		Sync: SyncConfig{
			Interval: getEnvAsDuration("SYNC_INTERVAL", 2*time.Second),
		},
		Scheduler: SchedulerConfig{
			Timezone:    getEnv("SCHEDULER_TZ", "Africa/Johannesburg"),
			Locking:     getEnvAsBool("SCHEDULER_LOCKING", false),
			LockBackend: strings.ToLower(getEnv("LOCK_BACKEND", "postgres")),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Artifacts: ArtifactConfig{
			Dir: getEnv("ARTIFACT_DIR", "downloads"),
		},
		Utilization: UtilizationConfig{
			Interval: getEnvAsDuration("UTILIZATION_INTERVAL", 2*time.Second),
			Samples:  getEnvAsInt("UTILIZATION_SAMPLES", 40),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func (c *Config) DatabaseURL() string {
	// If DATABASE_URL is set, use it directly
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		return databaseURL
	}

	// Otherwise, construct from individual components
	return "postgres://" + c.Database.User + ":" + c.Database.Password +
		"@" + c.Database.Host + ":" + c.Database.Port +
		"/" + c.Database.DBName + "?sslmode=" + c.Database.SSLMode
}

// Location resolves the scheduler timezone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// UsesPostgres reports whether any component needs a database pool
func (c *Config) UsesPostgres() bool {
	return c.Database.ScheduleStore == "postgres" ||
		(c.Scheduler.Locking && c.Scheduler.LockBackend == "postgres")
}
