package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
)

const (
	// Порт по умолчанию для HTTPS (непривилегированный).
	defaultServerPort = "8443"

	// Бакет по умолчанию для файлов изображений.
	defaultMinioBucket = "razmetka-images"

	// Переменные окружения.
	envServerPort    = "SERVER_PORT"
	envTLSCertFile   = "TLS_CERT_FILE"
	envTLSKeyFile    = "TLS_KEY_FILE"
	envDatabaseDSN   = "DATABASE_DSN"
	envMinioEndpoint = "MINIO_ENDPOINT"
	envMinioUser     = "MINIO_USER"
	envMinioPassword = "MINIO_PASSWORD"
	envMinioBucket   = "MINIO_BUCKET"
)

// config хранит конфигурацию сервера.
type config struct {
	Port          string
	CertFile      string
	KeyFile       string
	DatabaseDSN   string
	MinioEndpoint string
	MinioUser     string
	MinioPassword string
	MinioBucket   string
}

// envOr возвращает значение переменной окружения или значение по умолчанию.
func envOr(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// parseFlags разбирает флаги и переменные окружения, возвращает config или ошибку.
// Приоритет: флаг, затем переменная окружения, затем значение по умолчанию.
func parseFlags() (*config, error) {
	cfg := &config{}

	// Определяем флаги
	flag.StringVar(&cfg.Port, "port", "",
		fmt.Sprintf("Порт для запуска HTTPS-сервера (env: %s, default: %s)", envServerPort, defaultServerPort))
	flag.StringVar(&cfg.CertFile, "cert-file", "",
		fmt.Sprintf("Путь к файлу TLS-сертификата (env: %s)", envTLSCertFile))
	flag.StringVar(&cfg.KeyFile, "key-file", "",
		fmt.Sprintf("Путь к файлу TLS-ключа (env: %s)", envTLSKeyFile))
	flag.StringVar(&cfg.DatabaseDSN, "database-dsn", "",
		fmt.Sprintf("Строка подключения к базе данных (env: %s)", envDatabaseDSN))
	flag.StringVar(&cfg.MinioEndpoint, "minio-endpoint", "",
		fmt.Sprintf("Адрес MinIO (env: %s)", envMinioEndpoint))
	flag.StringVar(&cfg.MinioUser, "minio-user", "",
		fmt.Sprintf("Логин MinIO (env: %s)", envMinioUser))
	flag.StringVar(&cfg.MinioPassword, "minio-password", "",
		fmt.Sprintf("Пароль MinIO (env: %s)", envMinioPassword))
	flag.StringVar(&cfg.MinioBucket, "minio-bucket", "",
		fmt.Sprintf("Бакет MinIO для изображений (env: %s, default: %s)", envMinioBucket, defaultMinioBucket))

	// Парсим флаги
	flag.Parse()

	// Применяем переменные окружения, если флаги не заданы
	if cfg.Port == "" {
		cfg.Port = envOr(envServerPort, defaultServerPort)
	}
	if cfg.CertFile == "" {
		cfg.CertFile = envOr(envTLSCertFile, "")
	}
	if cfg.KeyFile == "" {
		cfg.KeyFile = envOr(envTLSKeyFile, "")
	}
	if cfg.DatabaseDSN == "" {
		cfg.DatabaseDSN = envOr(envDatabaseDSN, "")
	}
	if cfg.MinioEndpoint == "" {
		cfg.MinioEndpoint = envOr(envMinioEndpoint, "localhost:9000")
	}
	if cfg.MinioUser == "" {
		cfg.MinioUser = envOr(envMinioUser, "minioadmin")
	}
	if cfg.MinioPassword == "" {
		cfg.MinioPassword = envOr(envMinioPassword, "minioadmin")
	}
	if cfg.MinioBucket == "" {
		cfg.MinioBucket = envOr(envMinioBucket, defaultMinioBucket)
	}

	// Проверяем обязательные параметры
	if cfg.CertFile == "" {
		return nil, errors.New("не указан путь к файлу сертификата (--cert-file или " + envTLSCertFile + ")")
	}
	if cfg.KeyFile == "" {
		return nil, errors.New("не указан путь к файлу ключа (--key-file или " + envTLSKeyFile + ")")
	}
	if cfg.DatabaseDSN == "" {
		return nil, errors.New("не указана строка подключения к БД (--database-dsn или " + envDatabaseDSN + ")")
	}

	return cfg, nil
}
