package config

import (
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	defaultListenAddr     = ":5000"
	defaultDBPath         = "strassen.db"
	defaultCoordinatorURL = "http://localhost:5000"
	defaultBaseCase       = 2
	defaultRequestTimeout = 10 * time.Second
	defaultRetryMax       = 3
	defaultRetryWaitMin   = 500 * time.Millisecond
	defaultRetryWaitMax   = 5 * time.Second

	envListenAddr     = "STRASSEN_LISTEN_ADDR"
	envDBPath         = "STRASSEN_DB_PATH"
	envLogLevel       = "STRASSEN_LOG_LEVEL"
	envCoordinatorURL = "STRASSEN_COORDINATOR_URL"
	envWorkerID       = "STRASSEN_WORKER_ID"
	envWorkerURL      = "STRASSEN_WORKER_URL"
	envBaseCase       = "STRASSEN_BASE_CASE"
	envRequestTimeout = "STRASSEN_REQUEST_TIMEOUT"
	envRetryMax       = "STRASSEN_RETRY_MAX"
	envRetryWaitMin   = "STRASSEN_RETRY_WAIT_MIN"
	envRetryWaitMax   = "STRASSEN_RETRY_WAIT_MAX"
)

// Config holds application configuration loaded from environment variables.
// The coordinator and the workers read the same variables and use the
// subset that applies to them.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level

	CoordinatorURL string
	WorkerID       string
	WorkerURL      string
	BaseCase       int

	RequestTimeout time.Duration
	RetryMax       int
	RetryWaitMin   time.Duration
	RetryWaitMax   time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// Unparseable values fall back to their defaults.
func Load() Config {
	cfg := Config{
		ListenAddr:     defaultListenAddr,
		DBPath:         defaultDBPath,
		LogLevel:       slog.LevelInfo,
		CoordinatorURL: defaultCoordinatorURL,
		BaseCase:       defaultBaseCase,
		RequestTimeout: defaultRequestTimeout,
		RetryMax:       defaultRetryMax,
		RetryWaitMin:   defaultRetryWaitMin,
		RetryWaitMax:   defaultRetryWaitMax,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envCoordinatorURL); v != "" {
		cfg.CoordinatorURL = strings.TrimRight(v, "/")
	}

	cfg.WorkerID = os.Getenv(envWorkerID)
	if cfg.WorkerID == "" {
		cfg.WorkerID = "worker-" + strings.ToLower(ulid.Make().String())
	}
	cfg.WorkerURL = os.Getenv(envWorkerURL)
	if cfg.WorkerURL == "" {
		cfg.WorkerURL = workerURL(cfg.ListenAddr)
	}

	if n, ok := parseInt(os.Getenv(envBaseCase)); ok && n >= 1 {
		cfg.BaseCase = n
	}
	if n, ok := parseInt(os.Getenv(envRetryMax)); ok && n >= 0 {
		cfg.RetryMax = n
	}
	if d, ok := parseDuration(os.Getenv(envRequestTimeout)); ok {
		cfg.RequestTimeout = d
	}
	if d, ok := parseDuration(os.Getenv(envRetryWaitMin)); ok {
		cfg.RetryWaitMin = d
	}
	if d, ok := parseDuration(os.Getenv(envRetryWaitMax)); ok {
		cfg.RetryWaitMax = d
	}
	if cfg.RetryWaitMax < cfg.RetryWaitMin {
		cfg.RetryWaitMax = cfg.RetryWaitMin
	}

	return cfg
}

// workerURL derives the URL other nodes use to reach this process. An empty
// host in addr is replaced by the machine's hostname.
func workerURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://localhost" + defaultListenAddr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
		if h, err := os.Hostname(); err == nil && h != "" {
			host = h
		}
	}
	return "http://" + net.JoinHostPort(host, port)
}

func parseInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseDuration(s string) (time.Duration, bool) {
	if s == "" {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
