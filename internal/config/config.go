package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Режимы постоянного хранилища.
const (
	ModeDatabase = "database"
	ModeFile     = "file"
	ModeMemory   = "in-memory"
)

// Config хранит конфигурацию сервера
type Config struct {
	ServerAddress   string        `json:"server_address"`
	BaseURL         string        `json:"base_url"`
	QRBaseURL       string        `json:"qr_base_url"`
	FileStoragePath string        `json:"file_storage_path"`
	DatabaseDSN     string        `json:"database_dsn"`
	RedisAddr       string        `json:"redis_addr"`
	RedisPassword   string        `json:"redis_password"`
	RedisDB         int           `json:"redis_db"`
	CacheTimeout    time.Duration `json:"cache_timeout"`
	PersistentTTL   time.Duration `json:"persistent_ttl"`
	EphemeralTTL    time.Duration `json:"ephemeral_ttl"`
	CodeMaxRetries  int           `json:"code_max_retries"`
	JWTSecret       string        `json:"jwt_secret"`
	GRPCAddress     string        `json:"grpc_address"`
	Mode            string        `json:"-"`
}

var defaults = map[string]interface{}{
	"SERVER_ADDRESS":    "localhost:8080",
	"BASE_URL":          "http://localhost:8080",
	"QR_BASE_URL":       "",
	"FILE_STORAGE_PATH": "",
	"DATABASE_DSN":      "",
	"REDIS_ADDR":        "",
	"REDIS_PASSWORD":    "",
	"REDIS_DB":          0,
	"CACHE_TIMEOUT":     200 * time.Millisecond,
	"PERSISTENT_TTL":    24 * time.Hour,
	"EPHEMERAL_TTL":     time.Hour,
	"CODE_MAX_RETRIES":  10,
	"JWT_SECRET":        "",
	"GRPC_ADDRESS":      "",
}

// NewConfig инициализирует конфигурацию из аргументов командной строки процесса.
func NewConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load собирает конфигурацию.
// Приоритет: флаги > переменные окружения > .env > JSON-файл > значения по умолчанию.
func Load(args []string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// Читаем .env, если есть. Ошибку игнорируем, если файла нет
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	fs := flag.NewFlagSet("shortener", flag.ContinueOnError)
	serverAddress := fs.String("a", "", "server address")
	baseURL := fs.String("b", "", "base URL of short links")
	fileStoragePath := fs.String("f", "", "journal file for the in-memory persistent store")
	databaseDSN := fs.String("d", "", "PostgreSQL DSN")
	redisAddr := fs.String("r", "", "Redis address")
	grpcAddress := fs.String("g", "", "gRPC health server address")
	configPath := fs.String("c", "", "path to JSON config file")
	fs.StringVar(configPath, "config", "", "path to JSON config file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configPath == "" {
		*configPath = os.Getenv("CONFIG")
	}
	if *configPath != "" {
		if err := mergeJSON(v, *configPath); err != nil {
			return nil, err
		}
	}

	// Переменные окружения перекрывают JSON и значения по умолчанию
	v.AutomaticEnv()

	cfg := &Config{
		ServerAddress:   v.GetString("SERVER_ADDRESS"),
		BaseURL:         v.GetString("BASE_URL"),
		QRBaseURL:       v.GetString("QR_BASE_URL"),
		FileStoragePath: v.GetString("FILE_STORAGE_PATH"),
		DatabaseDSN:     v.GetString("DATABASE_DSN"),
		RedisAddr:       v.GetString("REDIS_ADDR"),
		RedisPassword:   v.GetString("REDIS_PASSWORD"),
		RedisDB:         v.GetInt("REDIS_DB"),
		CacheTimeout:    v.GetDuration("CACHE_TIMEOUT"),
		PersistentTTL:   v.GetDuration("PERSISTENT_TTL"),
		EphemeralTTL:    v.GetDuration("EPHEMERAL_TTL"),
		CodeMaxRetries:  v.GetInt("CODE_MAX_RETRIES"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		GRPCAddress:     v.GetString("GRPC_ADDRESS"),
	}

	// Флаг, если передан, важнее всего
	override := func(flagValue string, target *string) {
		if flagValue != "" {
			*target = flagValue
		}
	}
	override(*serverAddress, &cfg.ServerAddress)
	override(*baseURL, &cfg.BaseURL)
	override(*fileStoragePath, &cfg.FileStoragePath)
	override(*databaseDSN, &cfg.DatabaseDSN)
	override(*redisAddr, &cfg.RedisAddr)
	override(*grpcAddress, &cfg.GRPCAddress)

	if cfg.QRBaseURL == "" {
		cfg.QRBaseURL = cfg.BaseURL + "/api/qr"
	}

	// Определяем режим работы
	switch {
	case cfg.DatabaseDSN != "":
		cfg.Mode = ModeDatabase
	case cfg.FileStoragePath != "":
		cfg.Mode = ModeFile
	default:
		cfg.Mode = ModeMemory
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ошибка конфигурации: %w", err)
	}
	return cfg, nil
}

// mergeJSON загружает JSON-файл конфигурации поверх значений по умолчанию.
func mergeJSON(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("не удалось прочитать JSON-файл конфигурации %q: %w", path, err)
	}

	type rawJSON struct {
		Config
		CacheTimeout  string `json:"cache_timeout"`
		PersistentTTL string `json:"persistent_ttl"`
		EphemeralTTL  string `json:"ephemeral_ttl"`
	}
	var raw rawJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("ошибка разбора JSON-файла конфигурации: %w", err)
	}

	// SetDefault, а не Set: переменные окружения должны перекрывать файл
	set := func(key, value string) {
		if value != "" {
			v.SetDefault(key, value)
		}
	}
	set("SERVER_ADDRESS", raw.ServerAddress)
	set("BASE_URL", raw.BaseURL)
	set("QR_BASE_URL", raw.QRBaseURL)
	set("FILE_STORAGE_PATH", raw.FileStoragePath)
	set("DATABASE_DSN", raw.DatabaseDSN)
	set("REDIS_ADDR", raw.RedisAddr)
	set("REDIS_PASSWORD", raw.RedisPassword)
	set("JWT_SECRET", raw.JWTSecret)
	set("GRPC_ADDRESS", raw.GRPCAddress)
	set("CACHE_TIMEOUT", raw.CacheTimeout)
	set("PERSISTENT_TTL", raw.PersistentTTL)
	set("EPHEMERAL_TTL", raw.EphemeralTTL)
	if raw.RedisDB != 0 {
		v.SetDefault("REDIS_DB", raw.RedisDB)
	}
	if raw.CodeMaxRetries != 0 {
		v.SetDefault("CODE_MAX_RETRIES", raw.CodeMaxRetries)
	}
	return nil
}

// Validate проверяет корректность конфигурации
func (cfg *Config) Validate() error {
	if cfg.ServerAddress == "" {
		return errors.New("адрес сервера не может быть пустым")
	}
	if cfg.BaseURL == "" {
		return errors.New("базовый URL не может быть пустым")
	}
	if cfg.PersistentTTL <= 0 || cfg.EphemeralTTL <= 0 {
		return errors.New("TTL кэша должен быть положительным")
	}
	if cfg.CacheTimeout <= 0 {
		return errors.New("таймаут кэша должен быть положительным")
	}
	if cfg.CodeMaxRetries <= 0 {
		return errors.New("число попыток генерации кода должно быть положительным")
	}
	return nil
}
