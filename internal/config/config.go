package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"cases"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address         string `envconfig:"CASE_ENGINE_ADDRESS" default:":3443"`
	MetricsAddress  string `envconfig:"CASE_ENGINE_METRICS_ADDRESS" default:":8080"`
	LogLevel        string `envconfig:"CASE_ENGINE_LOG_LEVEL" default:"info"`
	LogFormat       string `envconfig:"CASE_ENGINE_LOG_FORMAT" default:"console"`
	MigrationFolder string `envconfig:"CASE_ENGINE_MIGRATIONS_FOLDER" default:""`
	Kafka           KafkaConfig
	Redis           RedisConfig
	Auth            Auth
}

type KafkaConfig struct {
	Brokers  []string `envconfig:"CASE_ENGINE_KAFKA_BROKERS" default:""`
	Topic    string   `envconfig:"CASE_ENGINE_KAFKA_TOPIC" default:"verification.cases.events"`
	ClientID string   `envconfig:"CASE_ENGINE_KAFKA_CLIENT_ID" default:"case-engine"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CASE_ENGINE_REDIS_URL" default:""`
	CaseCacheTTL time.Duration `envconfig:"CASE_ENGINE_CASE_CACHE_TTL" default:"30s"`
}

type Auth struct {
	AuthenticationType string `envconfig:"CASE_ENGINE_AUTH" default:""`
	JwkCertURL         string `envconfig:"CASE_ENGINE_JWK_URL" default:""`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a fresh config populated only from defaults and the environment.
// It never touches the process-wide singleton, so tests can mutate it freely.
func NewDefault() *Config {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		cfg = &Config{Database: &dbConfig{}, Service: &svcConfig{}}
	}
	return cfg
}
