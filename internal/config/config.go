package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config top-level struct
type Config struct {
	Server    ServerConfig             `yaml:"server"`
	Log       LogConfig                `yaml:"log"`
	Postgres  PostgresConfig           `yaml:"postgres"`
	FastPath  FastPathConfig           `yaml:"fastpath"`
	Countries map[string]CountryConfig `yaml:"countries"`
	Redis     RedisConfig              `yaml:"redis"`
	Kafka     KafkaConfig              `yaml:"kafka"`
	RateLimit RateLimitConfig          `yaml:"ratelimit"`
	Auth      AuthConfig               `yaml:"auth"`
	Worker    WorkerConfig             `yaml:"worker"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// PostgresConfig backs the postgres fast-path driver and the credential store.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// FastPathConfig selects the store written synchronously on appointment creation.
type FastPathConfig struct {
	Driver string       `yaml:"driver"` // postgres, dynamodb, memory
	Dynamo DynamoConfig `yaml:"dynamodb"`
}

type DynamoConfig struct {
	Region   string `yaml:"region"`
	Table    string `yaml:"table"`
	Index    string `yaml:"insured_index"`
	Endpoint string `yaml:"endpoint"`
}

// CountryConfig is the system-of-record for one supported country.
type CountryConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers         []string      `yaml:"brokers"`
	RequestTopic    string        `yaml:"request_topic"`
	CompletionTopic string        `yaml:"completion_topic"`
	GroupPrefix     string        `yaml:"group_prefix"`
	BatchSize       int           `yaml:"batch_size"`
	BatchWait       time.Duration `yaml:"batch_wait"`
}

type RateLimitConfig struct {
	RPS     int           `yaml:"rps"`
	Burst   int           `yaml:"burst"`
	IdleTTL time.Duration `yaml:"idle_ttl"` // per-IP buckets unused this long are dropped
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	Issuer    string        `yaml:"issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type WorkerConfig struct {
	PoolSize int `yaml:"pool_size"`
}

const (
	DriverPostgres = "postgres"
	DriverDynamo   = "dynamodb"
	DriverMemory   = "memory"
)

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	return Config{
		Server:   ServerConfig{Port: 8080, ShutdownTimeout: 10 * time.Second},
		Log:      LogConfig{Level: "info"},
		FastPath: FastPathConfig{Driver: DriverPostgres, Dynamo: DynamoConfig{Region: "us-east-1", Table: "appointments", Index: "InsuredIdIndex"}},
		Redis:    RedisConfig{Addr: "127.0.0.1:6379"},
		Kafka: KafkaConfig{
			Brokers:         []string{"localhost:9092"},
			RequestTopic:    "appointment-requests",
			CompletionTopic: "appointment-completions",
			GroupPrefix:     "appointment",
			BatchSize:       10,
			BatchWait:       time.Second,
		},
		RateLimit: RateLimitConfig{RPS: 20, Burst: 40, IdleTTL: 10 * time.Minute},
		Auth:      AuthConfig{Issuer: "appointment-service", TokenTTL: 24 * time.Hour},
		Worker:    WorkerConfig{PoolSize: 8},
	}
}

// Load reads yaml file on top of the defaults, then applies .env and environment overrides.
// A missing file is not an error; the defaults and environment still apply.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	// override DSN password from env if present
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" && cfg.Postgres.DSN != "" {
		cfg.Postgres.DSN = cfg.Postgres.DSN + " password=" + pw
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Postgres.DSN = dsn
	}
	if d := os.Getenv("FASTPATH_DRIVER"); d != "" {
		cfg.FastPath.Driver = d
	}
	if ep := os.Getenv("DYNAMO_ENDPOINT"); ep != "" {
		cfg.FastPath.Dynamo.Endpoint = ep
	}
	if b := os.Getenv("KAFKA_BROKERS"); b != "" {
		cfg.Kafka.Brokers = splitCSV(b)
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if s := os.Getenv("JWT_SECRET"); s != "" {
		cfg.Auth.JWTSecret = s
	}
	for code, c := range cfg.Countries {
		if dsn := os.Getenv("COUNTRY_" + strings.ToUpper(code) + "_DSN"); dsn != "" {
			c.DSN = dsn
			cfg.Countries[code] = c
		}
	}
}

// Validate rejects settings no binary can start with.
func (c *Config) Validate() error {
	switch c.FastPath.Driver {
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres fast-path driver")
		}
	case DriverDynamo:
		if c.FastPath.Dynamo.Table == "" {
			return errors.New("fastpath.dynamodb.table is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown fastpath driver %q", c.FastPath.Driver)
	}
	if len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required")
	}
	if c.Kafka.RequestTopic == "" || c.Kafka.CompletionTopic == "" {
		return errors.New("kafka.request_topic and kafka.completion_topic are required")
	}
	if c.Kafka.BatchSize <= 0 {
		return errors.New("kafka.batch_size must be positive")
	}
	if c.Worker.PoolSize <= 0 {
		return errors.New("worker.pool_size must be positive")
	}
	return nil
}

// Country returns the store settings of a configured country, matched case-insensitively.
func (c *Config) Country(code string) (CountryConfig, bool) {
	for k, v := range c.Countries {
		if strings.EqualFold(k, code) {
			return v, true
		}
	}
	return CountryConfig{}, false
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
