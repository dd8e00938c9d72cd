// Файл: internal/db/partner_ops.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"sarafan/internal/common"
	"sarafan/internal/models"
)

const partnerColumns = `p.id, p.partner_type, p.name, p.discount, p.city_id, c.name, p.contacts,
        COALESCE(p.message_partner_name, ''), p.clients_brought, p.clients_received, p.partners_invited,
        p.priority, p.linked_partner_id, p.owner_chat_id, p.unique_code`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPartner(row rowScanner) (models.Partner, error) {
	var p models.Partner
	err := row.Scan(&p.ID, &p.Type, &p.Name, &p.Discount, &p.CityID, &p.CityName, &p.Contacts,
		&p.MessagePartnerName, &p.ClientsBrought, &p.ClientsReceived, &p.PartnersInvited,
		&p.Priority, &p.LinkedPartnerID, &p.OwnerChatID, &p.UniqueCode)
	return p, err
}

// FindPartner возвращает партнера с городом и категориями.
func (s *Store) FindPartner(ctx context.Context, id string) (models.Partner, error) {
	query := `SELECT ` + partnerColumns + `
              FROM partner_info p JOIN cities c ON c.id = p.city_id
              WHERE p.id = $1`
	p, err := scanPartner(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return models.Partner{}, notFound(err, "FindPartner: партнер %s", id)
	}
	cats, err := s.loadCategories(ctx, []string{p.ID})
	if err != nil {
		return models.Partner{}, err
	}
	p.Categories = cats[p.ID]
	return p, nil
}

// PartnerExists проверяет наличие партнера без загрузки категорий.
func (s *Store) PartnerExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM partner_info WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("PartnerExists: ошибка проверки партнера %s: %w", id, err)
	}
	return exists, nil
}

// ListPartnersByCity возвращает всех партнеров города с категориями.
func (s *Store) ListPartnersByCity(ctx context.Context, cityID int64) ([]models.Partner, error) {
	query := `SELECT ` + partnerColumns + `
              FROM partner_info p JOIN cities c ON c.id = p.city_id
              WHERE p.city_id = $1 ORDER BY p.id`
	return s.queryPartners(ctx, query, cityID)
}

// ListAllPartners возвращает весь каталог (для выгрузки отчетов).
func (s *Store) ListAllPartners(ctx context.Context) ([]models.Partner, error) {
	query := `SELECT ` + partnerColumns + `
              FROM partner_info p JOIN cities c ON c.id = p.city_id
              ORDER BY c.name, p.id`
	return s.queryPartners(ctx, query)
}

func (s *Store) queryPartners(ctx context.Context, query string, args ...any) ([]models.Partner, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Printf("queryPartners: ошибка получения партнеров: %v", err)
		return nil, fmt.Errorf("ошибка получения партнеров: %w", err)
	}
	defer rows.Close()

	var partners []models.Partner
	var ids []string
	for rows.Next() {
		p, errScan := scanPartner(rows)
		if errScan != nil {
			return nil, fmt.Errorf("ошибка сканирования партнера: %w", errScan)
		}
		partners = append(partners, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации партнеров: %w", err)
	}
	if len(partners) == 0 {
		return partners, nil
	}

	cats, err := s.loadCategories(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range partners {
		partners[i].Categories = cats[partners[i].ID]
	}
	return partners, nil
}

// loadCategories загружает категории для набора партнеров одним запросом.
func (s *Store) loadCategories(ctx context.Context, partnerIDs []string) (map[string][]models.Category, error) {
	result := make(map[string][]models.Category, len(partnerIDs))
	if len(partnerIDs) == 0 {
		return result, nil
	}
	placeholders := make([]string, len(partnerIDs))
	args := make([]any, len(partnerIDs))
	for i, id := range partnerIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := `SELECT sc.salon_id, cat.id, cat.name
              FROM salon_categories sc JOIN categories cat ON cat.id = sc.category_id
              WHERE sc.salon_id IN (` + strings.Join(placeholders, ", ") + `)
              ORDER BY cat.id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения категорий партнеров: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var partnerID string
		var c models.Category
		if err := rows.Scan(&partnerID, &c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("ошибка сканирования категории: %w", err)
		}
		result[partnerID] = append(result[partnerID], c)
	}
	return result, rows.Err()
}

// IncrementBrought атомарно увеличивает счетчик приведенных клиентов.
func (s *Store) IncrementBrought(ctx context.Context, partnerID string) error {
	return s.incrementCounter(ctx, "clients_brought", partnerID)
}

// IncrementReceived атомарно увеличивает счетчик полученных клиентов.
func (s *Store) IncrementReceived(ctx context.Context, partnerID string) error {
	return s.incrementCounter(ctx, "clients_received", partnerID)
}

func (s *Store) incrementCounter(ctx context.Context, column, partnerID string) error {
	query := fmt.Sprintf(`UPDATE partner_info SET %[1]s = %[1]s + 1 WHERE id = $1`, column)
	res, err := s.db.ExecContext(ctx, query, partnerID)
	if err != nil {
		log.Printf("incrementCounter: ошибка обновления %s для партнера %s: %v", column, partnerID, err)
		return fmt.Errorf("ошибка обновления счетчика %s: %w", column, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("incrementCounter: партнер %s: %w", partnerID, common.ErrNotFound)
	}
	return nil
}

// BindOwnerChat привязывает Telegram-чат к партнеру по его уникальному коду.
func (s *Store) BindOwnerChat(ctx context.Context, uniqueCode string, chatID int64) (models.Partner, error) {
	var partnerID string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM partner_info WHERE unique_code = $1`, uniqueCode).Scan(&partnerID)
	if err != nil {
		return models.Partner{}, notFound(err, "BindOwnerChat: код '%s'", uniqueCode)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE partner_info SET owner_chat_id = $1 WHERE id = $2`, chatID, partnerID); err != nil {
		return models.Partner{}, fmt.Errorf("BindOwnerChat: ошибка привязки чата %d к партнеру %s: %w", chatID, partnerID, err)
	}
	log.Printf("BindOwnerChat: чат %d привязан к партнеру %s", chatID, partnerID)
	return s.FindPartner(ctx, partnerID)
}

// EnsureCity возвращает ID города, создавая его при необходимости.
func (s *Store) EnsureCity(ctx context.Context, name string) (int64, error) {
	return s.ensureNamed(ctx, "cities", name)
}

// EnsureCategory возвращает ID категории, создавая ее при необходимости.
func (s *Store) EnsureCategory(ctx context.Context, name string) (int64, error) {
	return s.ensureNamed(ctx, "categories", name)
}

func (s *Store) ensureNamed(ctx context.Context, table, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE name = $1`, table), name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("ошибка поиска в %s '%s': %w", table, name, err)
	}
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`INSERT INTO %s (name) VALUES ($1) RETURNING id`, table), name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания записи в %s '%s': %w", table, name, err)
	}
	return id, nil
}

// UpsertPartner создает или обновляет партнера из импорта и заменяет его категории.
// Счетчики и привязанный чат при обновлении сохраняются, уникальный код выставляется только один раз.
func (s *Store) UpsertPartner(ctx context.Context, p models.Partner, categoryIDs []int64) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("UpsertPartner: ошибка начала транзакции: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	query := `INSERT INTO partner_info
                (id, partner_type, name, discount, city_id, contacts, message_partner_name, priority, linked_partner_id, unique_code)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
              ON CONFLICT (id) DO UPDATE SET
                partner_type = excluded.partner_type,
                name = excluded.name,
                discount = excluded.discount,
                city_id = excluded.city_id,
                contacts = excluded.contacts,
                message_partner_name = excluded.message_partner_name,
                priority = excluded.priority,
                linked_partner_id = excluded.linked_partner_id,
                unique_code = COALESCE(partner_info.unique_code, excluded.unique_code)`
	_, err = tx.ExecContext(ctx, query, p.ID, p.Type, p.Name, p.Discount, p.CityID, p.Contacts,
		p.MessagePartnerName, p.Priority, p.LinkedPartnerID, p.UniqueCode)
	if err != nil {
		return fmt.Errorf("UpsertPartner: ошибка сохранения партнера %s: %w", p.ID, err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM salon_categories WHERE salon_id = $1`, p.ID); err != nil {
		return fmt.Errorf("UpsertPartner: ошибка очистки категорий партнера %s: %w", p.ID, err)
	}
	for _, catID := range categoryIDs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO salon_categories (salon_id, category_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, p.ID, catID)
		if err != nil {
			return fmt.Errorf("UpsertPartner: ошибка привязки категории %d к партнеру %s: %w", catID, p.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("UpsertPartner: ошибка фиксации транзакции: %w", err)
	}
	return nil
}
