// Файл: internal/handlers/telegram_handler.go

package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"

	"sarafan/internal/common"
	"sarafan/internal/constants"
	"sarafan/internal/models"
	"sarafan/internal/reports"
)

// HandleTelegramUpdate обрабатывает команды Telegram-бота оповещений.
func (bh *BotHandler) HandleTelegramUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}
	if bh.Deps.Notifier == nil {
		log.Println("HandleTelegramUpdate: Notifier не настроен, команда проигнорирована.")
		return
	}

	message := update.Message
	chatID := message.Chat.ID
	log.Printf("HandleTelegramUpdate: ChatID=%d, Command='%s'", chatID, message.Command())

	switch message.Command() {
	case "start":
		bh.tgReply(ctx, chatID, constants.MSG_TG_GREETING)
	case "connect":
		bh.handleConnect(ctx, chatID, message.CommandArguments())
	case "export":
		bh.handleExport(ctx, chatID)
	default:
		log.Printf("HandleTelegramUpdate: Неизвестная команда '%s' от chatID %d", message.Command(), chatID)
	}
}

// handleConnect привязывает чат к партнеру по уникальному коду.
func (bh *BotHandler) handleConnect(ctx context.Context, chatID int64, args string) {
	code := strings.TrimSpace(args)
	if code == "" || strings.ContainsAny(code, " \t\n") {
		bh.tgReply(ctx, chatID, constants.MSG_TG_CONNECT_USAGE)
		return
	}

	partner, err := bh.Deps.Store.BindOwnerChat(ctx, code, chatID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			bh.tgReply(ctx, chatID, constants.MSG_TG_CONNECT_UNKNOWN)
			return
		}
		log.Printf("handleConnect: Ошибка привязки чата %d: %v", chatID, err)
		bh.tgReply(ctx, chatID, constants.MSG_TG_CONNECT_ERROR)
		return
	}
	log.Printf("handleConnect: Чат %d подключен к оповещениям партнера %s", chatID, partner.ID)
	bh.tgReply(ctx, chatID, constants.MSG_TG_CONNECT_OK)

	if bh.Deps.Config.BotPhone == "" {
		return
	}
	link, err := models.ReferralLink(bh.Deps.Config.BotPhone, partner.ID)
	if err != nil {
		log.Printf("handleConnect: Не удалось сформировать ссылку для партнера %s: %v", partner.ID, err)
		return
	}
	bh.tgReply(ctx, chatID, fmt.Sprintf(constants.MSG_TG_REFERRAL_LINK, link))
}

// handleExport отправляет администратору выгрузку статистики партнеров.
func (bh *BotHandler) handleExport(ctx context.Context, chatID int64) {
	if !bh.Deps.Config.IsTelegramAdmin(chatID) {
		bh.tgReply(ctx, chatID, constants.MSG_TG_EXPORT_DENIED)
		return
	}
	if bh.Deps.Documents == nil {
		log.Println("handleExport: DocumentSender не настроен.")
		bh.tgReply(ctx, chatID, constants.MSG_TG_EXPORT_ERROR)
		return
	}

	partners, err := bh.Deps.Store.ListAllPartners(ctx)
	if err != nil {
		log.Printf("handleExport: Ошибка получения партнеров из БД: %v", err)
		bh.tgReply(ctx, chatID, constants.MSG_TG_EXPORT_ERROR)
		return
	}
	data, err := reports.PartnerStatsBytes(partners)
	if err != nil {
		log.Printf("handleExport: Ошибка формирования Excel файла: %v", err)
		bh.tgReply(ctx, chatID, constants.MSG_TG_EXPORT_ERROR)
		return
	}
	if err := bh.Deps.Documents.SendDocument(ctx, chatID, constants.STATS_FILE_NAME, data, constants.MSG_TG_EXPORT_CAPTION); err != nil {
		log.Printf("handleExport: Ошибка отправки Excel файла в чат %d: %v", chatID, err)
		bh.tgReply(ctx, chatID, constants.MSG_TG_EXPORT_ERROR)
	}
}

func (bh *BotHandler) tgReply(ctx context.Context, chatID int64, text string) {
	if err := bh.Deps.Notifier.Notify(ctx, chatID, text); err != nil {
		log.Printf("tgReply: Ошибка отправки сообщения в чат %d: %v", chatID, err)
	}
}
