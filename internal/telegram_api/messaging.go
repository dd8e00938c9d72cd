package telegram_api

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"

	"sarafan/internal/common"
)

// Notify отправляет оповещение владельцу партнера.
func (bc *BotClient) Notify(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if chatID == 0 {
		return fmt.Errorf("Notify: пустой chatID")
	}
	_, err := SendMessage(bc, chatID, text, "")
	if err != nil {
		return fmt.Errorf("Notify: %w: %v", common.ErrExternalService, err)
	}
	return nil
}

// SendMessage отправляет новое текстовое сообщение.
func SendMessage(botClient *BotClient, chatID int64, text string, parseMode string) (tgbotapi.Message, error) {
	if botClient == nil || botClient.api == nil {
		log.Println("SendMessage: BotClient или его API не инициализирован.")
		return tgbotapi.Message{}, fmt.Errorf("BotClient не инициализирован")
	}

	newMsg := tgbotapi.NewMessage(chatID, text)
	if parseMode != "" {
		newMsg.ParseMode = parseMode
	}

	sentMsg, err := botClient.Send(newMsg)
	if err != nil {
		log.Printf("SendMessage: ОШИБКА отправки сообщения для chatID %d: %v", chatID, err)
		return tgbotapi.Message{}, err
	}
	log.Printf("SendMessage: Отправлено сообщение ID %d для chatID %d. Text: '%.50s...'", sentMsg.MessageID, chatID, text)
	return sentMsg, nil
}

// SendDocument отправляет файл (например, выгрузку статистики) в чат.
func (bc *BotClient) SendDocument(ctx context.Context, chatID int64, fileName string, data []byte, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if bc == nil || bc.api == nil {
		return fmt.Errorf("BotClient не инициализирован")
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: fileName, Bytes: data})
	doc.Caption = caption
	if _, err := bc.Send(doc); err != nil {
		log.Printf("SendDocument: ошибка отправки файла '%s' в чат %d: %v", fileName, chatID, err)
		return fmt.Errorf("SendDocument: %w: %v", common.ErrExternalService, err)
	}
	return nil
}
