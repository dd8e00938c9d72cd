// Файл: internal/db/client_ops.go
package db

import (
	"context"
	"fmt"
	"log"

	"sarafan/internal/common"
	"sarafan/internal/models"
)

// GetClient возвращает сессию клиента по идентификатору чата.
func (s *Store) GetClient(ctx context.Context, chatID string) (models.ClientSession, error) {
	var c models.ClientSession
	query := `SELECT chat_id, client_name, initial_salon_id, initial_salon_name, COALESCE(city, ''),
                     chosen_salon_id, claimed_salon_id, attempts_left, discount_claimed
              FROM clients_data WHERE chat_id = $1`
	err := s.db.QueryRowContext(ctx, query, chatID).Scan(
		&c.ChatID, &c.ClientName, &c.InitialPartnerID, &c.InitialPartnerName, &c.City,
		&c.ChosenPartnerID, &c.ClaimedPartnerID, &c.AttemptsLeft, &c.DiscountClaimed)
	if err != nil {
		return models.ClientSession{}, notFound(err, "GetClient: клиент %s", chatID)
	}
	return c, nil
}

// CreateClient создает новую сессию клиента.
func (s *Store) CreateClient(ctx context.Context, c models.ClientSession) error {
	query := `INSERT INTO clients_data
                (chat_id, client_name, initial_salon_id, initial_salon_name, city,
                 chosen_salon_id, claimed_salon_id, attempts_left, discount_claimed)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.db.ExecContext(ctx, query, c.ChatID, c.ClientName, c.InitialPartnerID, c.InitialPartnerName,
		c.City, c.ChosenPartnerID, c.ClaimedPartnerID, c.AttemptsLeft, c.DiscountClaimed)
	if err != nil {
		log.Printf("CreateClient: ошибка создания клиента %s: %v", c.ChatID, err)
		return fmt.Errorf("ошибка создания клиента %s: %w", c.ChatID, err)
	}
	log.Printf("Клиент %s создан (партнер %s)", c.ChatID, c.InitialPartnerID)
	return nil
}

// SaveClient сохраняет все изменяемые поля сессии.
func (s *Store) SaveClient(ctx context.Context, c models.ClientSession) error {
	query := `UPDATE clients_data SET
                client_name = $1, initial_salon_id = $2, initial_salon_name = $3, city = $4,
                chosen_salon_id = $5, claimed_salon_id = $6, attempts_left = $7, discount_claimed = $8,
                updated_at = CURRENT_TIMESTAMP
              WHERE chat_id = $9`
	res, err := s.db.ExecContext(ctx, query, c.ClientName, c.InitialPartnerID, c.InitialPartnerName, c.City,
		c.ChosenPartnerID, c.ClaimedPartnerID, c.AttemptsLeft, c.DiscountClaimed, c.ChatID)
	if err != nil {
		log.Printf("SaveClient: ошибка обновления клиента %s: %v", c.ChatID, err)
		return fmt.Errorf("ошибка обновления клиента %s: %w", c.ChatID, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("SaveClient: клиент %s: %w", c.ChatID, common.ErrNotFound)
	}
	return nil
}
