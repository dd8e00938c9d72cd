// Файл: internal/handlers/conversation_handler.go

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"unicode"

	"sarafan/internal/common"
	"sarafan/internal/constants"
	"sarafan/internal/formatters"
	"sarafan/internal/messaging"
	"sarafan/internal/models"
)

// HandleMessage обрабатывает одно входящее сообщение клиента целиком.
// Сообщения одного клиента обрабатываются строго последовательно.
func (bh *BotHandler) HandleMessage(ctx context.Context, in Inbound) {
	clientID := strings.TrimSpace(in.ClientID)
	text := strings.ToLower(strings.TrimSpace(in.Text))

	log.Printf("HandleMessage: ClientID=%s, FromBot=%t, Text='%s'", clientID, in.FromBot, text)

	if in.FromBot {
		log.Println("HandleMessage: Пропускаем обработку сообщения, отправленного ботом")
		return
	}
	if clientID == "" || text == "" {
		log.Println("HandleMessage: Пустой ID клиента или текст сообщения. Сообщение проигнорировано.")
		return
	}
	if bh.Deps.Config.BotChatID != "" && clientID == bh.Deps.Config.BotChatID {
		log.Println("HandleMessage: Пропускаем сообщение самому себе")
		return
	}

	unlock := bh.Deps.SessionManager.LockClient(clientID)
	defer unlock()

	switch {
	case strings.HasPrefix(text, models.TriggerPrefix):
		partnerID, _ := models.ParseTrigger(text)
		senderName := strings.TrimSpace(in.SenderName)
		if senderName == "" {
			senderName = constants.DEFAULT_CLIENT_NAME
		}
		bh.handleTrigger(ctx, clientID, senderName, partnerID)
	case isResponseToken(text):
		bh.handleUserResponse(ctx, clientID, text)
	case text == constants.TOKEN_UPDATE_DATA:
		bh.handleUpdateData(ctx, clientID)
	default:
		log.Printf("HandleMessage: Сообщение клиента %s не относится к логике бота и будет проигнорировано", clientID)
	}
}

func isResponseToken(text string) bool {
	switch text {
	case constants.TOKEN_YES, constants.TOKEN_NO, constants.TOKEN_ACCEPT, constants.TOKEN_DECLINE:
		return true
	}
	for _, r := range text {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// handleTrigger обрабатывает переход по реферальной ссылке партнера.
func (bh *BotHandler) handleTrigger(ctx context.Context, clientID, clientName, partnerID string) {
	if partnerID == "" {
		bh.reply(ctx, clientID, constants.TPL_INVALID_SALON_ID, nil)
		return
	}

	partner, err := bh.Deps.Store.FindPartner(ctx, partnerID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			log.Printf("handleTrigger: Партнер %s не найден (клиент %s)", partnerID, clientID)
			bh.reply(ctx, clientID, constants.TPL_SALON_NOT_FOUND, nil)
		} else {
			bh.failWithGeneralError(ctx, clientID, "handleTrigger: FindPartner", err)
		}
		return
	}

	s, err := bh.Deps.Store.GetClient(ctx, clientID)
	exists := err == nil
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		bh.failWithGeneralError(ctx, clientID, "handleTrigger: GetClient", err)
		return
	}

	var status string
	if exists {
		status, _, err = bh.Deps.Store.GetStatus(ctx, clientID, partnerID)
		if err != nil {
			bh.failWithGeneralError(ctx, clientID, "handleTrigger: GetStatus", err)
			return
		}
		if status == models.StatusVisited {
			log.Printf("handleTrigger: Клиент %s уже переходил по ссылке партнера %s", clientID, partnerID)
			bh.reply(ctx, clientID, constants.TPL_ALREADY_VISITED, nil)
			return
		}
	}

	if !exists {
		s = models.NewClientSession(clientID, clientName, partner)
		if err := bh.Deps.Store.CreateClient(ctx, s); err != nil {
			bh.failWithGeneralError(ctx, clientID, "handleTrigger: CreateClient", err)
			return
		}
		bh.reply(ctx, clientID, constants.TPL_START_MESSAGE, nil)
	} else {
		s.ResetRound(partner)
		bh.reply(ctx, clientID, constants.TPL_WELCOME_BACK, nil)
	}

	// Если статус уже был установлен (claimed или rejected), не меняем его
	if !models.IsTerminalStatus(status) {
		if err := bh.Deps.Store.SetStatus(ctx, clientID, partnerID, models.StatusVisited); err != nil {
			bh.failWithGeneralError(ctx, clientID, "handleTrigger: SetStatus", err)
			return
		}
	}
	if err := bh.Deps.Store.IncrementBrought(ctx, partnerID); err != nil {
		bh.failWithGeneralError(ctx, clientID, "handleTrigger: IncrementBrought", err)
		return
	}
	if !bh.saveSession(ctx, s, "handleTrigger") {
		return
	}
	log.Printf("handleTrigger: Данные клиента %s сохранены (партнер %s)", clientID, partnerID)

	bh.syncCRM(ctx, s)
	bh.handleDiscountRequest(ctx, &s)
	bh.trackStage(s)
}

// handleUserResponse маршрутизирует ответ клиента по полям сохраненной сессии.
func (bh *BotHandler) handleUserResponse(ctx context.Context, clientID, text string) {
	s, err := bh.Deps.Store.GetClient(ctx, clientID)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			log.Printf("handleUserResponse: Ошибка загрузки клиента %s: %v", clientID, err)
		}
		bh.reply(ctx, clientID, constants.TPL_DATA_LOADING_ERROR, nil)
		return
	}

	switch {
	case text == constants.TOKEN_YES && !s.DiscountClaimed:
		bh.handleDiscountRequest(ctx, &s)
	case text == constants.TOKEN_ACCEPT || text == constants.TOKEN_DECLINE:
		if s.DiscountClaimed {
			bh.reply(ctx, clientID, constants.TPL_ALREADY_CLAIMED, nil)
			break
		}
		if !s.HasOffer() {
			bh.reply(ctx, clientID, constants.TPL_SPIN_WHEEL_FIRST, nil)
			break
		}
		if text == constants.TOKEN_ACCEPT {
			bh.handleClaimDiscount(ctx, &s)
		} else {
			bh.handleDecline(ctx, &s)
		}
	case text == constants.TOKEN_NO:
		bh.reply(ctx, clientID, constants.TPL_USER_DECLINED, nil)
	default:
		bh.reply(ctx, clientID, constants.TPL_ACCEPT_TERMS, nil)
	}
	bh.trackStage(s)
}

// handleDecline отклоняет текущее предложение и тратит попытку.
func (bh *BotHandler) handleDecline(ctx context.Context, s *models.ClientSession) {
	rejectedID := s.ChosenPartnerID.String
	if err := bh.Deps.Store.SetStatus(ctx, s.ChatID, rejectedID, models.StatusRejected); err != nil {
		bh.failWithGeneralError(ctx, s.ChatID, "handleDecline: SetStatus", err)
		return
	}
	s.ChosenPartnerID = sql.NullString{}
	if s.AttemptsLeft > 0 {
		s.AttemptsLeft--
	}
	if !bh.saveSession(ctx, *s, "handleDecline") {
		return
	}
	log.Printf("handleDecline: Клиент %s отказался от партнера %s, осталось попыток: %d", s.ChatID, rejectedID, s.AttemptsLeft)

	if s.AttemptsLeft > 0 {
		bh.handleDiscountRequest(ctx, s)
		return
	}
	bh.sendSpinningWheel(ctx, s.ChatID)
	bh.handleNoAttemptsLeft(ctx, s)
}

// handleDiscountRequest крутит колесо и показывает результат.
func (bh *BotHandler) handleDiscountRequest(ctx context.Context, s *models.ClientSession) {
	if s.AttemptsLeft <= 0 {
		bh.handleNoAttemptsLeft(ctx, s)
		return
	}

	bh.sendSpinningWheel(ctx, s.ChatID)

	decision, err := bh.Deps.Allocator.SelectDiscount(ctx, *s)
	if err != nil {
		bh.replyAllocationError(ctx, s.ChatID, "handleDiscountRequest", err)
		return
	}
	chosen := decision.Partner
	s.ChosenPartnerID = sql.NullString{String: chosen.ID, Valid: true}
	if !bh.saveSession(ctx, *s, "handleDiscountRequest") {
		return
	}

	if decision.Priority {
		// Приоритетного партнера сразу записываем как полученного
		if !bh.handleClaimDiscount(ctx, s) {
			return
		}
		bh.reply(ctx, s.ChatID, constants.TPL_GET_DISCOUNT, formatters.PartnerParams(chosen, s.AttemptsLeft))
		return
	}
	bh.reply(ctx, s.ChatID, constants.TPL_DISCOUNT_OFFER, formatters.PartnerParams(chosen, s.AttemptsLeft))
}

// handleNoAttemptsLeft выдает скидку без выбора, когда попытки закончились.
func (bh *BotHandler) handleNoAttemptsLeft(ctx context.Context, s *models.ClientSession) {
	decision, err := bh.Deps.Allocator.SelectDiscount(ctx, *s)
	if err != nil {
		bh.replyAllocationError(ctx, s.ChatID, "handleNoAttemptsLeft", err)
		return
	}
	chosen := decision.Partner

	if err := bh.Deps.Store.SetStatus(ctx, s.ChatID, chosen.ID, models.StatusClaimed); err != nil {
		bh.failWithGeneralError(ctx, s.ChatID, "handleNoAttemptsLeft: SetStatus", err)
		return
	}
	s.ChosenPartnerID = sql.NullString{String: chosen.ID, Valid: true}
	s.ClaimedPartnerID = sql.NullString{String: chosen.ID, Valid: true}
	s.DiscountClaimed = true
	if err := bh.Deps.Store.IncrementReceived(ctx, chosen.ID); err != nil {
		bh.failWithGeneralError(ctx, s.ChatID, "handleNoAttemptsLeft: IncrementReceived", err)
		return
	}
	if !bh.saveSession(ctx, *s, "handleNoAttemptsLeft") {
		return
	}
	log.Printf("handleNoAttemptsLeft: Клиенту %s выдана скидка партнера %s", s.ChatID, chosen.ID)

	bh.reply(ctx, s.ChatID, constants.TPL_GET_DISCOUNT, formatters.PartnerParams(chosen, s.AttemptsLeft))
	bh.syncCRM(ctx, *s)
	bh.notifyClaim(ctx, *s, chosen)
}

// handleClaimDiscount записывает получение скидки текущего предложенного партнера.
// Возвращает false, если получение не состоялось.
func (bh *BotHandler) handleClaimDiscount(ctx context.Context, s *models.ClientSession) bool {
	chosen, err := bh.Deps.Store.FindPartner(ctx, s.ChosenPartnerID.String)
	if err != nil {
		log.Printf("handleClaimDiscount: Не найдены данные о партнере %s для клиента %s: %v", s.ChosenPartnerID.String, s.ChatID, err)
		bh.reply(ctx, s.ChatID, constants.TPL_GENERAL_ERROR, nil)
		return false
	}

	if err := bh.Deps.Store.SetStatus(ctx, s.ChatID, chosen.ID, models.StatusClaimed); err != nil {
		bh.failWithGeneralError(ctx, s.ChatID, "handleClaimDiscount: SetStatus", err)
		return false
	}
	s.DiscountClaimed = true
	s.ClaimedPartnerID = sql.NullString{String: chosen.ID, Valid: true}
	if err := bh.Deps.Store.IncrementReceived(ctx, chosen.ID); err != nil {
		bh.failWithGeneralError(ctx, s.ChatID, "handleClaimDiscount: IncrementReceived", err)
		return false
	}
	if !bh.saveSession(ctx, *s, "handleClaimDiscount") {
		return false
	}
	log.Printf("handleClaimDiscount: Клиент %s получил скидку партнера %s", s.ChatID, chosen.ID)

	bh.reply(ctx, s.ChatID, constants.TPL_CLAIM_DISCOUNT, formatters.PartnerParams(chosen, s.AttemptsLeft))
	bh.syncCRM(ctx, *s)
	bh.notifyClaim(ctx, *s, chosen)
	return true
}

// handleUpdateData обновляет каталог по команде администратора.
func (bh *BotHandler) handleUpdateData(ctx context.Context, clientID string) {
	if !bh.Deps.Config.IsAdmin(clientID) {
		log.Printf("handleUpdateData: Клиент %s не является администратором. Команда проигнорирована.", clientID)
		return
	}
	if bh.Deps.Refresher == nil {
		log.Println("handleUpdateData: Источник данных партнеров не настроен.")
		bh.send(ctx, clientID, constants.TOKEN_UPDATE_DATA, constants.MSG_DATA_UPDATE_ERROR)
		return
	}
	res, err := bh.Deps.Refresher.Refresh(ctx)
	if err != nil {
		log.Printf("handleUpdateData: Не удалось обновить данные о партнерах: %v", err)
		bh.send(ctx, clientID, constants.TOKEN_UPDATE_DATA, constants.MSG_DATA_UPDATE_ERROR)
		return
	}
	log.Printf("handleUpdateData: Каталог обновлен по команде %s: %+v", clientID, res)
	bh.send(ctx, clientID, constants.TOKEN_UPDATE_DATA, constants.MSG_DATA_UPDATED)
}

func (bh *BotHandler) sendSpinningWheel(ctx context.Context, clientID string) {
	bh.reply(ctx, clientID, constants.TPL_SPINNING_WHEEL, nil)
	if err := bh.Deps.Pacer.Pause(ctx); err != nil {
		log.Printf("sendSpinningWheel: Пауза для клиента %s прервана: %v", clientID, err)
	}
}

func (bh *BotHandler) replyAllocationError(ctx context.Context, clientID, op string, err error) {
	if errors.Is(err, common.ErrNoneAvailable) {
		log.Printf("%s: Нет доступных скидок для клиента %s", op, clientID)
		bh.reply(ctx, clientID, constants.TPL_NO_DISCOUNTS_AVAILABLE, nil)
		return
	}
	bh.failWithGeneralError(ctx, clientID, op+": SelectDiscount", err)
}

func (bh *BotHandler) saveSession(ctx context.Context, s models.ClientSession, op string) bool {
	if err := bh.Deps.Store.SaveClient(ctx, s); err != nil {
		bh.failWithGeneralError(ctx, s.ChatID, op+": SaveClient", err)
		return false
	}
	return true
}

// trackStage обновляет стадию клиента в памяти. На терминальной стадии запись удаляется:
// маршрутизация идет по сохраненной сессии, а следующий триггер начнет историю заново.
func (bh *BotHandler) trackStage(s models.ClientSession) {
	sm := bh.Deps.SessionManager
	stage := s.Stage()
	sm.SetState(s.ChatID, stage)
	if stage == models.StageClaimed || stage == models.StageExhausted {
		sm.ClearState(s.ChatID)
	}
}

// --- Исходящие сообщения и внешние сервисы ---

func (bh *BotHandler) failWithGeneralError(ctx context.Context, clientID, op string, err error) {
	log.Printf("%s: ОШИБКА для клиента %s: %v", op, clientID, err)
	bh.reply(ctx, clientID, constants.TPL_GENERAL_ERROR, nil)
}

// reply отправляет клиенту сообщение по шаблону.
func (bh *BotHandler) reply(ctx context.Context, clientID, template string, params map[string]string) {
	text, err := bh.Deps.Templates.Resolve(ctx, template, params)
	if err != nil {
		log.Printf("reply: Ошибка подстановки в шаблон '%s' для клиента %s: %v", template, clientID, err)
		text, _ = formatters.DefaultTemplate(constants.TPL_GENERAL_ERROR)
		template = constants.TPL_GENERAL_ERROR
	}
	bh.send(ctx, clientID, template, text)
}

func (bh *BotHandler) send(ctx context.Context, clientID, template, text string) {
	msg := messaging.NewOutboundMessage(clientID, template, text)
	if err := bh.Deps.Sender.Send(ctx, msg); err != nil {
		log.Printf("send: Ошибка отправки сообщения '%s' клиенту %s: %v", template, clientID, err)
	}
}

// syncCRM выгружает контакт и сделку клиента. Ошибки только логируются.
func (bh *BotHandler) syncCRM(ctx context.Context, s models.ClientSession) {
	contactID, err := bh.Deps.CRM.UpsertContact(ctx, s)
	if err != nil {
		log.Printf("syncCRM: Ошибка создания контакта для клиента %s: %v", s.ChatID, err)
		return
	}
	if err := bh.Deps.CRM.UpsertLead(ctx, s, contactID); err != nil {
		log.Printf("syncCRM: Ошибка обновления сделки для клиента %s: %v", s.ChatID, err)
	}
}
