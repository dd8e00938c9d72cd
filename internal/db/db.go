// Файл: internal/db/db.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver (локальная разработка и тесты)

	"sarafan/internal/common"
	"sarafan/internal/models"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Store - хранилище каталога партнеров, сессий клиентов, статусов и настроек.
// SQL-запросы общие для PostgreSQL и SQLite: плейсхолдеры $N идут строго по возрастанию.
type Store struct {
	db     *sql.DB
	driver string
}

// Open открывает соединение с базой данных и проверяет его.
func Open(driver, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("строка подключения к БД не установлена")
	}

	switch driver {
	case DriverPostgres:
		parsedURL, err := url.Parse(dsn)
		if err != nil {
			return nil, fmt.Errorf("ошибка парсинга DATABASE_URL: %v", err)
		}
		query := parsedURL.Query()
		// Пример: query.Set("sslmode", "require")
		parsedURL.RawQuery = query.Encode()
		dsn = parsedURL.String()
	case DriverSQLite:
	default:
		return nil, fmt.Errorf("%w: неизвестный драйвер БД %q", common.ErrInvalidConfig, driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %v", err)
	}

	if driver == DriverSQLite {
		// Одно соединение: для ":memory:" каждое новое соединение - отдельная БД.
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		conn.SetConnMaxLifetime(0)
	} else {
		conn.SetMaxOpenConns(50)
		conn.SetMaxIdleConns(20)
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ошибка проверки соединения с базой данных: %v", err)
	}

	log.Printf("Успешное подключение к базе данных (драйвер %s).", driver)
	return &Store{db: conn, driver: driver}, nil
}

// Close закрывает соединение с БД.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) idColumn() string {
	if s.driver == DriverSQLite {
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return "SERIAL PRIMARY KEY"
}

// Migrate создает таблицы и индексы, если их нет. Идемпотентна.
func (s *Store) Migrate(ctx context.Context) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции для создания таблиц: %v", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			log.Printf("Откат транзакции из-за ошибки: %v", err)
			tx.Rollback()
		}
	}()

	createTables := []string{
		`CREATE TABLE IF NOT EXISTS cities (
            id ` + s.idColumn() + `,
            name TEXT NOT NULL UNIQUE
        )`,
		`CREATE TABLE IF NOT EXISTS categories (
            id ` + s.idColumn() + `,
            name TEXT NOT NULL UNIQUE
        )`,
		`CREATE TABLE IF NOT EXISTS partner_info (
            id TEXT PRIMARY KEY,
            partner_type TEXT NOT NULL,
            name TEXT NOT NULL,
            discount TEXT NOT NULL,
            city_id INTEGER NOT NULL REFERENCES cities(id),
            contacts TEXT NOT NULL,
            message_partner_name TEXT,
            clients_brought INTEGER NOT NULL DEFAULT 0,
            clients_received INTEGER NOT NULL DEFAULT 0,
            partners_invited INTEGER NOT NULL DEFAULT 0,
            priority BOOLEAN NOT NULL DEFAULT FALSE,
            linked_partner_id TEXT,
            owner_chat_id BIGINT,
            unique_code TEXT UNIQUE,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS salon_categories (
            salon_id TEXT NOT NULL REFERENCES partner_info(id),
            category_id INTEGER NOT NULL REFERENCES categories(id),
            PRIMARY KEY (salon_id, category_id)
        )`,
		`CREATE TABLE IF NOT EXISTS clients_data (
            chat_id TEXT PRIMARY KEY,
            client_name TEXT NOT NULL,
            initial_salon_id TEXT NOT NULL,
            initial_salon_name TEXT NOT NULL,
            city TEXT,
            chosen_salon_id TEXT,
            claimed_salon_id TEXT,
            attempts_left INTEGER NOT NULL DEFAULT 1,
            discount_claimed BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS client_salon_status (
            client_id TEXT NOT NULL REFERENCES clients_data(chat_id),
            salon_id TEXT NOT NULL,
            status TEXT NOT NULL,
            PRIMARY KEY (client_id, salon_id)
        )`,
		`CREATE TABLE IF NOT EXISTS discount_weight_settings (
            id INTEGER PRIMARY KEY,
            ratio_40_80_weight INTEGER NOT NULL DEFAULT 3,
            ratio_30_40_weight INTEGER NOT NULL DEFAULT 2,
            ratio_below_30_weight INTEGER NOT NULL DEFAULT 1,
            partners_invited_weight INTEGER NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS message_templates (
            name TEXT PRIMARY KEY,
            template TEXT NOT NULL
        )`,
	}
	for _, stmt := range createTables {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ошибка создания таблиц: %v", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции создания таблиц: %v", err)
	}
	log.Println("Создание таблиц (если не существуют) завершено.")

	createIndexesSQL := `
        CREATE INDEX IF NOT EXISTS idx_partner_info_city_id ON partner_info(city_id);
        CREATE INDEX IF NOT EXISTS idx_salon_categories_category_id ON salon_categories(category_id);
        CREATE INDEX IF NOT EXISTS idx_client_salon_status_salon_id ON client_salon_status(salon_id);
    `
	for _, stmt := range strings.Split(strings.TrimSpace(createIndexesSQL), ";") {
		trimmedStmt := strings.TrimSpace(stmt)
		if trimmedStmt == "" {
			continue
		}
		if _, errIdx := s.db.ExecContext(ctx, trimmedStmt); errIdx != nil {
			log.Printf("Предупреждение: ошибка при создании индекса ('%s'): %v. Проверьте логи.", trimmedStmt, errIdx)
		}
	}
	log.Println("Инициализация базы данных успешно завершена.")
	return nil
}

// SeedDefaults создает строку настроек весов, если ее нет.
func (s *Store) SeedDefaults(ctx context.Context) error {
	_, err := s.GetWeightSettings(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return err
	}
	if err := s.SaveWeightSettings(ctx, models.DefaultWeightSettings()); err != nil {
		return fmt.Errorf("ошибка создания настроек весов по умолчанию: %w", err)
	}
	log.Println("SeedDefaults: Созданы настройки весов по умолчанию.")
	return nil
}

// notFound оборачивает sql.ErrNoRows в common.ErrNotFound.
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), common.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
