package telegram_api

import (
	"fmt"
	"log"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
)

// botAPI - часть *tgbotapi.BotAPI, которой пользуется клиент.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
}

// BotClient представляет собой обертку для Telegram Bot API.
// Через него партнерам отправляются оповещения и принимаются команды /start и /connect.
type BotClient struct {
	api   botAPI
	Debug bool
}

// InitBot инициализирует Telegram бота.
// token - API токен бота, debug - флаг для включения режима отладки.
func InitBot(token string, debug bool) (*BotClient, error) {
	if token == "" {
		return nil, fmt.Errorf("токен Telegram API не предоставлен")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации Telegram Bot API: %w", err)
	}

	api.Debug = debug

	log.Printf("Авторизован как аккаунт %s", api.Self.UserName)

	// Отключаем вебхук, если он активен (важно для getUpdates)
	deleteWebhookConfig := tgbotapi.DeleteWebhookConfig{
		DropPendingUpdates: true,
	}
	_, err = api.Request(deleteWebhookConfig)
	if err != nil {
		// Ошибка может возникнуть, если вебхука и не было.
		log.Printf("Предупреждение или ошибка при отключении вебхука: %v. Это может быть нормально, если вебхук не был установлен.", err)
	} else {
		log.Println("Вебхук успешно отключен (или не был установлен).")
	}

	return &BotClient{api: api, Debug: debug}, nil
}

// GetUpdatesChan возвращает канал обновлений от Telegram.
func (bc *BotClient) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	if bc == nil || bc.api == nil {
		log.Fatal("BotClient или его API не инициализирован перед запросом обновлений.")
	}
	if bc.Debug {
		log.Printf("Запрос канала обновлений с конфигурацией: %+v", config)
	}
	return bc.api.GetUpdatesChan(config)
}

// Send отправляет сообщение через BotClient.
func (bc *BotClient) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if bc == nil || bc.api == nil {
		return tgbotapi.Message{}, fmt.Errorf("BotClient или его API не инициализирован")
	}
	if bc.Debug {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			log.Printf("Отправка сообщения: ChatID=%d, Text='%.50s...'", msg.ChatID, msg.Text)
		} else {
			log.Printf("Отправка/запрос типа %T", c)
		}
	}
	return bc.api.Send(c)
}
