// Package crm описывает синхронизацию клиентов с CRM.
package crm

import (
	"context"
	"log"

	"sarafan/internal/models"
)

// Client - CRM, в которую выгружаются контакты и сделки клиентов.
type Client interface {
	UpsertContact(ctx context.Context, session models.ClientSession) (contactID int64, err error)
	UpsertLead(ctx context.Context, session models.ClientSession, contactID int64) error
}

// LogClient не обращается к внешней CRM и только пишет операции в лог.
type LogClient struct{}

func (LogClient) UpsertContact(_ context.Context, s models.ClientSession) (int64, error) {
	log.Printf("CRM.UpsertContact: клиент %s (%s), партнер %s", s.ChatID, s.ClientName, s.InitialPartnerID)
	return 0, nil
}

func (LogClient) UpsertLead(_ context.Context, s models.ClientSession, contactID int64) error {
	log.Printf("CRM.UpsertLead: клиент %s, контакт %d, получено: %t, партнер скидки: %s",
		s.ChatID, contactID, s.DiscountClaimed, s.ClaimedPartnerID.String)
	return nil
}
