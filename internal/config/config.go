// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"sarafan/internal/common"
	"sarafan/internal/constants"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL string
	DBDriver    string
	AppEnv      string
	Port        string

	TelegramToken    string
	TelegramAdminIDs []int64 // Чаты Telegram, которым доступна команда /export

	BotChatID    string              // Собственный идентификатор бота в мессенджере
	AdminChatIDs map[string]struct{} // Клиенты, которым разрешена команда "update data"
	BotPhone     string
	SpinDelay    time.Duration

	WebhookSecret string
	OutboundURL   string
	OutboundToken string

	PartnersXLSXPath   string
	SheetID            string
	SheetRange         string
	ServiceAccountFile string

	DBHost string
	DBPort string
	DBName string
}

// LoadConfig загружает конфигурацию из переменных окружения.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DBDriver:           os.Getenv("DB_DRIVER"),
		AppEnv:             os.Getenv("ENV"),
		Port:               os.Getenv("PORT"),
		TelegramToken:      os.Getenv("TELEGRAM_APITOKEN"),
		BotChatID:          os.Getenv("BOT_CHAT_ID"),
		BotPhone:           os.Getenv("BOT_PHONE"),
		WebhookSecret:      os.Getenv("WEBHOOK_SECRET"),
		OutboundURL:        os.Getenv("OUTBOUND_URL"),
		OutboundToken:      os.Getenv("OUTBOUND_TOKEN"),
		PartnersXLSXPath:   os.Getenv("PARTNERS_XLSX_PATH"),
		SheetID:            os.Getenv("SHEET_ID"),
		SheetRange:         os.Getenv("SHEET_RANGE"),
		ServiceAccountFile: os.Getenv("SERVICE_ACCOUNT_FILE"),
		AdminChatIDs:       make(map[string]struct{}),
	}

	if cfg.DBDriver == "" {
		cfg.DBDriver = "postgres"
	}
	if cfg.DBDriver != "postgres" && cfg.DBDriver != "sqlite3" {
		return nil, fmt.Errorf("%w: DB_DRIVER '%s' не поддерживается", common.ErrInvalidConfig, cfg.DBDriver)
	}
	if cfg.Port == "" {
		cfg.Port = constants.DEFAULT_PORT
	}
	if cfg.SheetRange == "" {
		cfg.SheetRange = constants.DEFAULT_SHEET_RANGE
	}

	spinDelayStr := os.Getenv("SPIN_DELAY")
	if spinDelayStr == "" {
		cfg.SpinDelay = constants.DEFAULT_SPIN_DELAY
	} else {
		d, errParse := time.ParseDuration(spinDelayStr)
		if errParse != nil || d < 0 {
			log.Printf("Предупреждение: Некорректное значение для SPIN_DELAY ('%s'): %v. Используется значение по умолчанию %s.", spinDelayStr, errParse, constants.DEFAULT_SPIN_DELAY)
			cfg.SpinDelay = constants.DEFAULT_SPIN_DELAY
		} else {
			cfg.SpinDelay = d
		}
	}

	for _, id := range strings.Split(os.Getenv("ADMIN_CHAT_IDS"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			cfg.AdminChatIDs[NormalizeChatID(id)] = struct{}{}
		}
	}
	if len(cfg.AdminChatIDs) == 0 {
		log.Println("Предупреждение: ADMIN_CHAT_IDS не установлен. Команда обновления данных недоступна.")
	}

	for _, idStr := range strings.Split(os.Getenv("TELEGRAM_ADMIN_IDS"), ",") {
		if idStr = strings.TrimSpace(idStr); idStr == "" {
			continue
		}
		id, errParse := strconv.ParseInt(idStr, 10, 64)
		if errParse != nil {
			log.Printf("Предупреждение: не удалось прочитать ID '%s' из TELEGRAM_ADMIN_IDS: %v. Пропущен.", idStr, errParse)
			continue
		}
		cfg.TelegramAdminIDs = append(cfg.TelegramAdminIDs, id)
	}

	if cfg.TelegramToken == "" {
		log.Println("Предупреждение: TELEGRAM_APITOKEN не установлен. Оповещения партнеров отключены.")
	}
	if cfg.BotChatID == "" {
		log.Println("Предупреждение: BOT_CHAT_ID не установлен.")
	}
	if cfg.BotPhone == "" {
		log.Println("Предупреждение: BOT_PHONE не установлен. Реферальные ссылки недоступны.")
	}
	if cfg.OutboundURL == "" {
		log.Println("Предупреждение: OUTBOUND_URL не установлен. Ответы клиентам будут только записаны в лог.")
	}
	if cfg.WebhookSecret == "" {
		log.Println("Предупреждение: WEBHOOK_SECRET не установлен. Подпись входящих сообщений не проверяется.")
	}

	if cfg.DatabaseURL == "" {
		log.Println("Критическая ошибка: DATABASE_URL не установлен.")
	} else if cfg.DBDriver == "postgres" {
		parsedURL, parseErr := url.Parse(cfg.DatabaseURL)
		if parseErr != nil {
			log.Printf("Критическая ошибка: ошибка парсинга DATABASE_URL: %v", parseErr)
		} else {
			cfg.DBHost = parsedURL.Hostname()
			cfg.DBPort = parsedURL.Port()
			if cfg.DBPort == "" {
				cfg.DBPort = "5432"
			}
			cfg.DBName = strings.TrimPrefix(parsedURL.Path, "/")
		}
	}

	log.Println("Конфигурация загружена.")
	return cfg, nil
}

// IsAdmin сообщает, разрешены ли клиенту служебные команды.
func (c *Config) IsAdmin(clientID string) bool {
	_, ok := c.AdminChatIDs[NormalizeChatID(clientID)]
	return ok
}

// IsTelegramAdmin сообщает, разрешена ли чату Telegram выгрузка статистики.
func (c *Config) IsTelegramAdmin(chatID int64) bool {
	for _, id := range c.TelegramAdminIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// NormalizeChatID убирает суффикс WhatsApp из идентификатора чата.
func NormalizeChatID(id string) string {
	return strings.TrimSuffix(strings.TrimSpace(id), constants.WHATSAPP_CHAT_SUFFIX)
}
