package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration. FromEnv keeps main lean.
type Server struct {
	Addr          string
	HTTP          HTTPTimeouts
	PostgresDSN   string
	Redis         RedisConfig
	KafkaBrokers  []string
	KafkaTopic    string
	JWTSigningKey string
	GateCacheTTL  time.Duration
}

// HTTPTimeouts bounds the listener's connection deadlines so a stuck
// client cannot pin a worker.
type HTTPTimeouts struct {
	ReadHeader time.Duration
	Read       time.Duration
	Write      time.Duration
	Idle       time.Duration
}

// RedisConfig mirrors the subset of go-redis options we tune.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("DEALFLOW_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default; override in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}
	topic := os.Getenv("KAFKA_STEP_EVENTS_TOPIC")
	if topic == "" {
		topic = "dealflow.step.events"
	}

	return Server{
		Addr: addr,
		HTTP: HTTPTimeouts{
			ReadHeader: durationEnv("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			Read:       durationEnv("HTTP_READ_TIMEOUT", 15*time.Second),
			Write:      durationEnv("HTTP_WRITE_TIMEOUT", 30*time.Second),
			Idle:       durationEnv("HTTP_IDLE_TIMEOUT", 2*time.Minute),
		},
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		KafkaBrokers:  brokers,
		KafkaTopic:    topic,
		JWTSigningKey: jwtSigningKey,
		GateCacheTTL:  durationEnv("GATE_CACHE_TTL", 5*time.Second),
	}
}

// durationEnv reads a duration from the environment, falling back when the
// variable is unset or unparseable.
func durationEnv(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
