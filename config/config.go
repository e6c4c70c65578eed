package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config groups every runtime setting of the backend. Values come from the
// process environment, optionally seeded from a .env file.
type Config struct {
	Port string

	DBDriver   string // mysql | sqlite
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	SQLitePath string

	SessionSecret string
	SessionTTL    time.Duration

	OpenAIKey      string
	OpenAIBaseURL  string
	ChatModel      string
	EmbeddingModel string

	ReferencePDF string
	IndexCache   string

	ReportWorkers   int
	ReportQueueSize int
	ReportTimeout   time.Duration
	GenerateRPM     int

	OrientationModelURL string
	PlaneModelURL       string

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string
}

// Load reads .env (if present) and the environment.
func Load() Config {
	for _, p := range []string{".env", "backend/.env"} {
		if err := godotenv.Load(p); err == nil {
			log.Printf("[config] loaded env from %s", p)
			break
		}
	}
	return Config{
		Port:                Get("PORT", "6000"),
		DBDriver:            strings.ToLower(Get("DB_DRIVER", "mysql")),
		DBHost:              Get("DB_HOST", "127.0.0.1"),
		DBPort:              Get("DB_PORT", "3306"),
		DBUser:              Get("DB_USER", "root"),
		DBPassword:          Get("DB_PASSWORD", ""),
		DBName:              Get("DB_NAME", "materna"),
		SQLitePath:          Get("SQLITE_PATH", "data/materna.db"),
		SessionSecret:       Get("SESSION_SECRET", "dev-insecure-secret"),
		SessionTTL:          time.Duration(Int("SESSION_TTL_HOURS", 24)) * time.Hour,
		OpenAIKey:           Get("OPENAI_API_KEY", ""),
		OpenAIBaseURL:       Get("OPENAI_BASE_URL", ""),
		ChatModel:           Get("CHAT_MODEL", "gpt-4o-mini"),
		EmbeddingModel:      Get("EMBEDDING_MODEL", "text-embedding-3-small"),
		ReferencePDF:        Get("REFERENCE_PDF", "maternacare.pdf"),
		IndexCache:          Get("INDEX_CACHE", "data/maternal_care_index.json"),
		ReportWorkers:       Int("REPORT_WORKERS", 4),
		ReportQueueSize:     Int("REPORT_QUEUE_SIZE", 64),
		ReportTimeout:       time.Duration(Int("REPORT_TIMEOUT_SEC", 180)) * time.Second,
		GenerateRPM:         IntAllowZero("GENERATE_RATE_PER_MIN", 30),
		OrientationModelURL: Get("ORIENTATION_MODEL_URL", ""),
		PlaneModelURL:       Get("PLANE_MODEL_URL", ""),
		SMTPHost:            Get("SMTP_HOST", ""),
		SMTPPort:            Get("SMTP_PORT", ""),
		SMTPUser:            Get("SMTP_USER", ""),
		SMTPPass:            Get("SMTP_PASS", ""),
		SMTPFrom:            Get("SMTP_FROM", ""),
	}
}

// Get returns the sanitized value of key or def when unset or blank.
func Get(key, def string) string {
	v := Sanitize(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// Int parses a positive integer setting; anything else yields def.
func Int(key string, def int) int {
	v := Get(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[config] ignoring %s=%q: not a positive integer", key, v)
		return def
	}
	return n
}

// IntAllowZero parses an integer setting where zero or a negative value is
// meaningful (usually "off"). Unparseable values yield def.
func IntAllowZero(key string, def int) int {
	v := Get(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] ignoring %s=%q: not an integer", key, v)
		return def
	}
	return n
}

// Sanitize trims whitespace and one pair of matching surrounding quotes,
// which commonly sneak into values copied into .env files.
func Sanitize(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
