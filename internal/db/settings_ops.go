// Файл: internal/db/settings_ops.go
package db

import (
	"context"
	"fmt"
	"log"

	"sarafan/internal/models"
)

const weightSettingsRowID = 1

// GetWeightSettings читает единственную строку настроек весов.
// Колонки читаются для полос в обратном порядке: полоса [0.4, 0.8] берет ratio_below_30_weight,
// полоса [0.3, 0.4) берет ratio_30_40_weight, остальные берут ratio_40_80_weight.
func (s *Store) GetWeightSettings(ctx context.Context) (models.WeightSettings, error) {
	var w models.WeightSettings
	query := `SELECT ratio_below_30_weight, ratio_30_40_weight, ratio_40_80_weight, partners_invited_weight
              FROM discount_weight_settings WHERE id = $1`
	err := s.db.QueryRowContext(ctx, query, weightSettingsRowID).Scan(
		&w.HighBandWeight, &w.MidBandWeight, &w.LowBandWeight, &w.PartnersInvitedWeight)
	if err != nil {
		return models.WeightSettings{}, notFound(err, "GetWeightSettings: ошибка чтения настроек весов")
	}
	return w, nil
}

// SaveWeightSettings создает или обновляет строку настроек весов.
func (s *Store) SaveWeightSettings(ctx context.Context, w models.WeightSettings) error {
	query := `INSERT INTO discount_weight_settings
                (id, ratio_below_30_weight, ratio_30_40_weight, ratio_40_80_weight, partners_invited_weight)
              VALUES ($1, $2, $3, $4, $5)
              ON CONFLICT (id) DO UPDATE SET
                ratio_below_30_weight = excluded.ratio_below_30_weight,
                ratio_30_40_weight = excluded.ratio_30_40_weight,
                ratio_40_80_weight = excluded.ratio_40_80_weight,
                partners_invited_weight = excluded.partners_invited_weight`
	_, err := s.db.ExecContext(ctx, query, weightSettingsRowID,
		w.HighBandWeight, w.MidBandWeight, w.LowBandWeight, w.PartnersInvitedWeight)
	if err != nil {
		log.Printf("SaveWeightSettings: ошибка сохранения настроек весов: %v", err)
		return fmt.Errorf("ошибка сохранения настроек весов: %w", err)
	}
	return nil
}

// GetMessageTemplate возвращает шаблон сообщения по имени.
func (s *Store) GetMessageTemplate(ctx context.Context, name string) (models.MessageTemplate, error) {
	tpl := models.MessageTemplate{Name: name}
	err := s.db.QueryRowContext(ctx, `SELECT template FROM message_templates WHERE name = $1`, name).Scan(&tpl.Template)
	if err != nil {
		return models.MessageTemplate{}, notFound(err, "GetMessageTemplate: шаблон '%s'", name)
	}
	return tpl, nil
}

// SaveMessageTemplate создает или заменяет шаблон сообщения.
func (s *Store) SaveMessageTemplate(ctx context.Context, tpl models.MessageTemplate) error {
	query := `INSERT INTO message_templates (name, template) VALUES ($1, $2)
              ON CONFLICT (name) DO UPDATE SET template = excluded.template`
	if _, err := s.db.ExecContext(ctx, query, tpl.Name, tpl.Template); err != nil {
		return fmt.Errorf("ошибка сохранения шаблона '%s': %w", tpl.Name, err)
	}
	return nil
}
