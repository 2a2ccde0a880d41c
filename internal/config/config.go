package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"gopkg.in/yaml.v3"
)

// FileEnv names a YAML file of KEY: value pairs that supplies fallbacks for
// any variable not set in the environment.
const FileEnv = "RASTERFLOW_CONFIG"

type Config struct {
	API       APIConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	Decode    DecodeConfig
	Fetch     FetchConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	RateLimit RateLimitConfig
	Trace     TraceConfig
	Webhook   WebhookConfig
}

type APIConfig struct {
	Addr           string
	MaxUploadBytes int64
	PresignTTL     time.Duration
}

type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Name          string
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type WorkerConfig struct {
	Concurrency    int
	MaxActiveJobs  int
	LocalOutputDir string
	MetricsAddr    string
}

type DecodeConfig struct {
	MaxRasterBytes      int64
	DefaultCornerRadius int
}

type FetchConfig struct {
	Timeout           time.Duration
	MaxRetries        int
	BackoffMultiplier float64
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type DatabaseConfig struct {
	DSN string
}

type RateLimitConfig struct {
	Backend      string
	Capacity     int
	Window       time.Duration
	UserIDHeader string
}

type TraceConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
	SampleRatio  float64
}

type WebhookConfig struct {
	SigningSecret  string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func Load() (Config, error) {
	src := source{}
	if path := strings.TrimSpace(os.Getenv(FileEnv)); path != "" {
		file, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		src.file = file
	}
	return src.load(), nil
}

type source struct {
	file map[string]string
}

func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		values[strings.ToUpper(strings.TrimSpace(key))] = fmt.Sprint(value)
	}
	return values, nil
}

func (s source) load() Config {
	defaultWorkerSlots := max(1, runtime.NumCPU()/2)

	return Config{
		API: APIConfig{
			Addr:           s.env("RASTERFLOW_API_ADDR", ":8080"),
			MaxUploadBytes: s.envInt64("API_MAX_UPLOAD_BYTES", 32<<20),
			PresignTTL:     s.envDuration("API_PRESIGN_TTL", 15*time.Minute),
		},
		Queue: QueueConfig{
			RedisAddr:     s.env("REDIS_ADDR", "localhost:6379"),
			RedisPassword: s.env("REDIS_PASSWORD", ""),
			RedisDB:       s.envInt("REDIS_DB", 0),
			Name:          s.env("ASYNC_QUEUE", "default"),
		},
		Worker: WorkerConfig{
			Concurrency:    s.envInt("WORKER_CONCURRENCY", max(2, runtime.NumCPU())),
			MaxActiveJobs:  s.envInt("WORKER_MAX_ACTIVE_JOBS", defaultWorkerSlots),
			LocalOutputDir: s.env("WORKER_LOCAL_OUTPUT_DIR", "./.rasterflow-output"),
			MetricsAddr:    s.env("WORKER_METRICS_ADDR", ":9091"),
		},
		Decode: DecodeConfig{
			MaxRasterBytes:      s.envInt64("DECODE_MAX_RASTER_BYTES", 256<<20),
			DefaultCornerRadius: s.envInt("DECODE_DEFAULT_CORNER_RADIUS", 10),
		},
		Fetch: FetchConfig{
			Timeout:           s.envDuration("HTTP_FETCH_TIMEOUT", time.Second),
			MaxRetries:        s.envInt("HTTP_FETCH_MAX_RETRIES", 2),
			BackoffMultiplier: s.envFloat("HTTP_FETCH_BACKOFF_MULT", 2),
		},
		Storage: StorageConfig{
			Endpoint:  s.env("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: s.env("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: s.env("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    s.env("MINIO_BUCKET", "rasterflow-jobs"),
			UseSSL:    s.envBool("MINIO_USE_SSL", false),
		},
		Database: DatabaseConfig{
			DSN: s.env("POSTGRES_DSN", ""),
		},
		RateLimit: RateLimitConfig{
			Backend:      s.env("RATE_LIMIT_BACKEND", "local"),
			Capacity:     s.envInt("RATE_LIMIT_CAPACITY", 60),
			Window:       s.envDuration("RATE_LIMIT_WINDOW", time.Minute),
			UserIDHeader: s.env("RATE_LIMIT_USER_HEADER", "X-User-ID"),
		},
		Trace: TraceConfig{
			Exporter:     s.env("TRACE_EXPORTER", "none"),
			OTLPEndpoint: s.env("TRACE_OTLP_ENDPOINT", ""),
			OTLPInsecure: s.envBool("TRACE_OTLP_INSECURE", true),
			SampleRatio:  s.envFloat("TRACE_SAMPLE_RATIO", 1),
		},
		Webhook: WebhookConfig{
			SigningSecret:  s.env("WEBHOOK_SIGNING_SECRET", ""),
			Timeout:        s.envDuration("WEBHOOK_TIMEOUT", 10*time.Second),
			MaxAttempts:    s.envInt("WEBHOOK_MAX_ATTEMPTS", 3),
			InitialBackoff: s.envDuration("WEBHOOK_INITIAL_BACKOFF", time.Second),
			MaxBackoff:     s.envDuration("WEBHOOK_MAX_BACKOFF", 30*time.Second),
		},
	}
}

func (s source) env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if ok && value != "" {
		return value
	}
	if value, ok := s.file[key]; ok && value != "" {
		return value
	}
	return fallback
}

func (s source) envInt(key string, fallback int) int {
	value := s.env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) envInt64(key string, fallback int64) int64 {
	value := s.env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) envFloat(key string, fallback float64) float64 {
	value := s.env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) envBool(key string, fallback bool) bool {
	value := s.env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) envDuration(key string, fallback time.Duration) time.Duration {
	value := s.env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
