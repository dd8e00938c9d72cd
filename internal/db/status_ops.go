// Файл: internal/db/status_ops.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sarafan/internal/models"
)

// GetStatus возвращает статус пары клиент-партнер. ok == false, если записи нет.
func (s *Store) GetStatus(ctx context.Context, clientID, partnerID string) (status string, ok bool, err error) {
	query := `SELECT status FROM client_salon_status WHERE client_id = $1 AND salon_id = $2`
	err = s.db.QueryRowContext(ctx, query, clientID, partnerID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("GetStatus: ошибка чтения статуса (%s, %s): %w", clientID, partnerID, err)
	}
	return status, true, nil
}

// SetStatus записывает статус пары, заменяя предыдущий.
func (s *Store) SetStatus(ctx context.Context, clientID, partnerID, status string) error {
	query := `INSERT INTO client_salon_status (client_id, salon_id, status) VALUES ($1, $2, $3)
              ON CONFLICT (client_id, salon_id) DO UPDATE SET status = excluded.status`
	if _, err := s.db.ExecContext(ctx, query, clientID, partnerID, status); err != nil {
		return fmt.Errorf("SetStatus: ошибка записи статуса '%s' (%s, %s): %w", status, clientID, partnerID, err)
	}
	return nil
}

// StatusRowsOf возвращает историю статусов клиента.
func (s *Store) StatusRowsOf(ctx context.Context, clientID string) ([]models.StatusRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT salon_id, status FROM client_salon_status WHERE client_id = $1 ORDER BY salon_id`, clientID)
	if err != nil {
		return nil, fmt.Errorf("StatusRowsOf: ошибка чтения истории клиента %s: %w", clientID, err)
	}
	defer rows.Close()
	var result []models.StatusRow
	for rows.Next() {
		var r models.StatusRow
		if err := rows.Scan(&r.PartnerID, &r.Status); err != nil {
			return nil, fmt.Errorf("StatusRowsOf: ошибка сканирования: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// ListExcludedPartners возвращает партнеров, с которыми клиент уже взаимодействовал (любой статус).
func (s *Store) ListExcludedPartners(ctx context.Context, clientID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT salon_id FROM client_salon_status WHERE client_id = $1`, clientID)
	if err != nil {
		return nil, fmt.Errorf("ListExcludedPartners: ошибка для клиента %s: %w", clientID, err)
	}
	defer rows.Close()
	result := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ListExcludedPartners: ошибка сканирования: %w", err)
		}
		result[id] = struct{}{}
	}
	return result, rows.Err()
}

// ListExcludedCategories возвращает объединение категорий всех партнеров из истории клиента.
func (s *Store) ListExcludedCategories(ctx context.Context, clientID string) (map[int64]struct{}, error) {
	query := `SELECT DISTINCT sc.category_id
              FROM client_salon_status st JOIN salon_categories sc ON sc.salon_id = st.salon_id
              WHERE st.client_id = $1`
	rows, err := s.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("ListExcludedCategories: ошибка для клиента %s: %w", clientID, err)
	}
	defer rows.Close()
	result := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ListExcludedCategories: ошибка сканирования: %w", err)
		}
		result[id] = struct{}{}
	}
	return result, rows.Err()
}
