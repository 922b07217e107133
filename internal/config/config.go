// Package config loads the environment-variable configuration for the
// coordinator and worker binaries, optionally pre-seeded from a .env file
// via godotenv, the way the teacher repo's cmd/seed_supabase bootstraps its
// own environment before reading individual variables, then struct-tag
// decoded via joeshaw/envdecode the way the teacher's go.mod pulls it in for
// exactly this concern.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// loadEnvFile loads ENV_FILE if set, or .env in the working directory if
// present. A missing .env is not an error; an explicitly named ENV_FILE that
// can't be read is.
func loadEnvFile() error {
	if path := os.Getenv("ENV_FILE"); path != "" {
		return godotenv.Load(path)
	}
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}

// Coordinator holds every variable the coordinator binary reads at startup.
type Coordinator struct {
	Port                 int    `env:"PORT,default=8080"`
	Host                 string `env:"HOST,default=0.0.0.0"`
	DBName               string `env:"DB_NAME,default=records.db"`
	SampleDBName         string `env:"SAMPLE_DB_NAME,default=records_sample.db"`
	APIToken             string `env:"API_TOKEN"`
	LogLevel             string `env:"LOG_LEVEL,default=info"`
	LogFormat            string `env:"LOG_FORMAT,default=text"`
	WalletDescriptorPath string `env:"WALLET_DESCRIPTOR_PATH,default=wallet.json"`
	FoundMarkerPath      string `env:"FOUND_MARKER_PATH,default=FOUND.txt"`
	StartupTimePath      string `env:"STARTUP_TIME_PATH,default=startup_time.txt"`
	RedisAddr            string `env:"REDIS_ADDR"`
	SweepIntervalMinutes int    `env:"SWEEP_INTERVAL_MINUTES,default=60"`
}

// LoadCoordinator reads the coordinator's configuration from the process
// environment, applying spec.md §6's defaults.
func LoadCoordinator() (Coordinator, error) {
	if err := loadEnvFile(); err != nil {
		return Coordinator{}, fmt.Errorf("load env file: %w", err)
	}

	var cfg Coordinator
	if err := envdecode.Decode(&cfg); err != nil {
		return Coordinator{}, fmt.Errorf("decode configuration: %w", err)
	}
	return cfg, nil
}

// ResetAllowed reports whether the active store is the designated sample
// store, per spec.md §4.5's policy gate on /work/reset-found.
func (c Coordinator) ResetAllowed() bool {
	return c.DBName == c.SampleDBName
}

// Worker holds every variable the worker binary reads at startup.
type Worker struct {
	ServerURL     string  `env:"SERVER_URL,default=http://localhost:8080"`
	APIToken      string  `env:"API_TOKEN"`
	MaxWorkers    int     `env:"MAX_WORKERS,default=0"` // 0 = uncapped, clamped against cpu_count
	CPUUsageRatio float64 `env:"CPU_USAGE_RATIO,default=1.0"`
	WorkerID      string  `env:"WORKER_ID"`
	WorkerIDPath  string  `env:"WORKER_ID_PATH,default=worker_id.txt"`
	LogLevel      string  `env:"LOG_LEVEL,default=info"`
	LogFormat     string  `env:"LOG_FORMAT,default=text"`
}

// LoadWorker reads the worker's configuration from the process environment.
// If WORKER_ID is unset, it is generated once via google/uuid and persisted
// to WorkerIDPath so restarts keep a stable identity.
func LoadWorker() (Worker, error) {
	if err := loadEnvFile(); err != nil {
		return Worker{}, fmt.Errorf("load env file: %w", err)
	}

	var cfg Worker
	if err := envdecode.Decode(&cfg); err != nil {
		return Worker{}, fmt.Errorf("decode configuration: %w", err)
	}

	if cfg.WorkerID == "" {
		id, err := loadOrCreateWorkerID(cfg.WorkerIDPath)
		if err != nil {
			return Worker{}, fmt.Errorf("resolve worker id: %w", err)
		}
		cfg.WorkerID = id
	}

	if cfg.CPUUsageRatio <= 0 || cfg.CPUUsageRatio > 1 {
		cfg.CPUUsageRatio = 1.0
	}

	return cfg, nil
}

func loadOrCreateWorkerID(path string) (string, error) {
	if data, err := os.ReadFile(path); err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id, nil
		}
	}
	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		return "", err
	}
	return id, nil
}
