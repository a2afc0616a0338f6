package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout int
	Timeout     int
	Prefix      string
}

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	Prefix          string
	URLTTL          int
}

type SchoolAPIConfig struct {
	URL     string
	Timeout int
}

type LeadsConfig struct {
	PageOffset int
	PageSize   int
}

type AppConfig struct {
	Port      string
	SchoolAPI SchoolAPIConfig
	Leads     LeadsConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	S3        S3Config

	// ExportStorage is "local" or "s3".
	ExportStorage     string
	ExportDir         string
	FilesPublicPrefix string
	ExternalURL       string
	ExportFileTTL     int

	TokenableType  string
	AllowedOrigins []string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int value %q: %v", s, err)
	}
	return i
}

func mustBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		log.Fatalf("invalid bool value %q: %v", s, err)
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func Load() AppConfig {
	storage := strings.ToLower(getenv("EXPORT_STORAGE", "local"))
	if storage != "local" && storage != "s3" {
		log.Fatalf("invalid EXPORT_STORAGE %q: want local or s3", storage)
	}

	return AppConfig{
		Port: getenv("APP_PORT", "8010"),
		SchoolAPI: SchoolAPIConfig{
			URL:     getenv("SCHOOL_API_URL", "http://localhost:3002"),
			Timeout: mustAtoi(getenv("SCHOOL_API_TIMEOUT", "15")),
		},
		Leads: LeadsConfig{
			PageOffset: mustAtoi(getenv("LEADS_PAGE_OFFSET", "1")),
			PageSize:   mustAtoi(getenv("LEADS_PAGE_SIZE", "10")),
		},
		Postgres: PostgresConfig{
			Host:     getenv("PG_HOST", "127.0.0.1"),
			Port:     mustAtoi(getenv("PG_PORT", "5432")),
			User:     getenv("PG_USER", "root"),
			Password: getenv("PG_PASSWORD", ""),
			DBName:   getenv("PG_DB", "school"),
			SSLMode:  getenv("PG_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:        getenv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    getenv("REDIS_PASSWORD", ""),
			DB:          mustAtoi(getenv("REDIS_DB", "0")),
			MaxRetries:  mustAtoi(getenv("REDIS_MAX_RETRIES", "5")),
			DialTimeout: mustAtoi(getenv("REDIS_DIAL_TIMEOUT", "10")),
			Timeout:     mustAtoi(getenv("REDIS_TIMEOUT", "5")),
			Prefix:      getenv("EXPORT_CACHE_PREFIX", getenv("REDIS_PREFIX", "school_admin_")),
		},
		S3: S3Config{
			Endpoint:        getenv("S3_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getenv("S3_ACCESS_KEY", "minio"),
			SecretAccessKey: getenv("S3_SECRET_KEY", "minio123"),
			Bucket:          getenv("S3_BUCKET", "exports"),
			Region:          getenv("S3_REGION", "us-east-1"),
			UseSSL:          mustBool(getenv("S3_USE_SSL", "false")),
			Prefix:          getenv("S3_PREFIX", ""),
			URLTTL:          mustAtoi(getenv("S3_URL_TTL", "60")),
		},
		ExportStorage:     storage,
		ExportDir:         getenv("EXPORT_DIR", "./exports"),
		FilesPublicPrefix: getenv("FILES_PUBLIC_PREFIX", "/files"),
		ExternalURL:       getenv("EXTERNAL_URL", ""),
		ExportFileTTL:     mustAtoi(getenv("EXPORT_FILE_TTL", "30")),
		TokenableType:     getenv("AUTH_TOKENABLE_TYPE", `App\Models\User`),
		AllowedOrigins:    splitList(getenv("WS_ALLOWED_ORIGINS", "")),
	}
}
