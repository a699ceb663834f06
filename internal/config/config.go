package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the immutable configuration for one process. It is loaded once
// at startup and passed down; no component reads the environment directly.
type Config struct {
	Environment string
	LogLevel    string
	ListenAddr  string

	// Acefone telephony provider.
	AcefoneBaseURL  string
	AcefoneEmail    string
	AcefonePassword string

	// Bitrix24 inbound-webhook base, e.g. https://example.bitrix24.in/rest/24/abc123/
	BitrixWebhookURL string

	// OpenAI-compatible speech + text endpoint (Lemonfox, OpenAI, or a gateway).
	SpeechBaseURL string
	SpeechAPIKey  string
	SpeechModel   string
	SummaryModel  string

	// Optional shared secret expected in the X-Secret webhook header.
	SharedSecret string

	// Grace period before the first recording fetch, covering the
	// provider's finalization lag.
	SettleDelay time.Duration

	// Recording poll policy.
	RecordingAttempts int
	RecordingDelay    time.Duration
	MinRecordingBytes int

	// Timeline comments are capped by Bitrix; the transcript excerpt is
	// bounded to this many characters.
	TranscriptLimit int

	RequestTimeout time.Duration

	// SQLite journal of processed call ids.
	StateDBPath string
}

// Load reads .env (if present) and the process environment, applies
// defaults, and validates required credentials.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment: envOr("ENVIRONMENT", "local"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		ListenAddr:  ":" + envOr("PORT", "8080"),

		AcefoneBaseURL:  strings.TrimRight(envOr("ACEFONE_BASE_URL", "https://api.acefone.in/v1"), "/"),
		AcefoneEmail:    os.Getenv("ACEFONE_EMAIL"),
		AcefonePassword: os.Getenv("ACEFONE_PASSWORD"),

		BitrixWebhookURL: os.Getenv("BITRIX_WEBHOOK"),

		SpeechBaseURL: envOr("SPEECH_BASE_URL", "https://api.lemonfox.ai/v1"),
		SpeechAPIKey:  os.Getenv("SPEECH_API_KEY"),
		SpeechModel:   envOr("SPEECH_MODEL", "whisper-1"),
		SummaryModel:  envOr("SUMMARY_MODEL", "gpt-4o-mini"),

		SharedSecret: os.Getenv("ACF_SECRET"),

		SettleDelay:       envDuration("SETTLE_DELAY", 15*time.Second),
		RecordingAttempts: envInt("RECORDING_ATTEMPTS", 3),
		RecordingDelay:    envDuration("RECORDING_DELAY", 10*time.Second),
		MinRecordingBytes: envInt("MIN_RECORDING_BYTES", 5000),

		TranscriptLimit: envInt("TRANSCRIPT_LIMIT", 5000),
		RequestTimeout:  envDuration("REQUEST_TIMEOUT", 30*time.Second),

		StateDBPath: envOr("STATE_DB_PATH", "acefone-bridge.db"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate fails fast on missing credentials so a misconfigured deploy
// never silently skips a pipeline stage.
func (c Config) Validate() error {
	var missing []string
	if c.AcefoneEmail == "" {
		missing = append(missing, "ACEFONE_EMAIL")
	}
	if c.AcefonePassword == "" {
		missing = append(missing, "ACEFONE_PASSWORD")
	}
	if c.BitrixWebhookURL == "" {
		missing = append(missing, "BITRIX_WEBHOOK")
	}
	if c.SpeechAPIKey == "" {
		missing = append(missing, "SPEECH_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.RecordingAttempts < 1 {
		return fmt.Errorf("RECORDING_ATTEMPTS must be at least 1, got %d", c.RecordingAttempts)
	}
	if c.MinRecordingBytes < 0 {
		return fmt.Errorf("MIN_RECORDING_BYTES must not be negative, got %d", c.MinRecordingBytes)
	}
	return nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	// plain numbers are taken as seconds, matching the legacy deploy vars
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
