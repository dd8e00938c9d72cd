package handlers

import (
	"context"
	"fmt"
	"log"

	"sarafan/internal/constants"
	"sarafan/internal/models"
)

// notifyClaim оповещает владельца партнера, выдавшего скидку, и владельца партнера, приведшего клиента.
func (bh *BotHandler) notifyClaim(ctx context.Context, s models.ClientSession, claimed models.Partner) {
	if bh.Deps.Notifier == nil {
		return
	}

	if claimed.OwnerChatID.Valid {
		text := fmt.Sprintf(constants.MSG_NOTIFY_NEW_CLIENT, s.ClientName, s.ChatID)
		if err := bh.Deps.Notifier.Notify(ctx, claimed.OwnerChatID.Int64, text); err != nil {
			log.Printf("notifyClaim: Ошибка оповещения партнера %s о клиенте %s: %v", claimed.ID, s.ChatID, err)
		}
	}

	origin, err := bh.Deps.Store.FindPartner(ctx, s.InitialPartnerID)
	if err != nil {
		log.Printf("notifyClaim: Партнер %s, приведший клиента %s, не найден: %v", s.InitialPartnerID, s.ChatID, err)
		return
	}
	if origin.OwnerChatID.Valid {
		text := fmt.Sprintf(constants.MSG_NOTIFY_BROUGHT_CLIENT, s.ClientName, s.ChatID, claimed.Name)
		if err := bh.Deps.Notifier.Notify(ctx, origin.OwnerChatID.Int64, text); err != nil {
			log.Printf("notifyClaim: Ошибка оповещения партнера %s о приведенном клиенте %s: %v", origin.ID, s.ChatID, err)
		}
	}
}
