package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"sync"
	"unicode/utf8"

	"sarafan/internal/common"
	"sarafan/internal/models"
)

// Store - операции хранилища, нужные импорту.
type Store interface {
	EnsureCity(ctx context.Context, name string) (int64, error)
	EnsureCategory(ctx context.Context, name string) (int64, error)
	UpsertPartner(ctx context.Context, p models.Partner, categoryIDs []int64) error
	PartnerExists(ctx context.Context, id string) (bool, error)
}

// WeightRefresher перечитывает настройки весов после импорта.
type WeightRefresher interface {
	Refresh(ctx context.Context) error
}

// Result - итог импорта. Skipped включает строки с неверным числом колонок и строки, которые не удалось сохранить.
type Result struct {
	Imported int
	Skipped  int
}

// Importer обновляет каталог из источника. Одновременно выполняется только один импорт.
type Importer struct {
	store   Store
	weights WeightRefresher
	source  Source
	intN    func(n int) int
	mu      sync.Mutex
}

// New создает Importer. weights может быть nil.
func New(store Store, weights WeightRefresher, source Source) *Importer {
	return &Importer{store: store, weights: weights, source: source, intN: rand.IntN}
}

// Refresh загружает каталог из источника, заданного при создании.
func (im *Importer) Refresh(ctx context.Context) (Result, error) {
	if im.source == nil {
		return Result{}, fmt.Errorf("%w: источник данных партнеров не настроен", common.ErrInvalidConfig)
	}
	return im.RefreshFrom(ctx, im.source)
}

// RefreshFrom загружает каталог из указанного источника.
func (im *Importer) RefreshFrom(ctx context.Context, src Source) (Result, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	rows, err := src.Rows(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(rows) == 0 {
		return Result{}, fmt.Errorf("Не удалось найти данные в таблице")
	}

	var res Result
	for i, cells := range rows {
		row, ok := ParseRow(cells)
		if !ok {
			res.Skipped++
			continue
		}
		if err := im.importRow(ctx, row); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			log.Printf("Importer.Refresh: строка %d пропущена: %v", i+1, err)
			res.Skipped++
			continue
		}
		res.Imported++
	}

	if im.weights != nil {
		if err := im.weights.Refresh(ctx); err != nil {
			log.Printf("Importer.Refresh: настройки весов не загружены: %v", err)
		}
	}
	log.Printf("Данные о партнерах успешно обновлены: загружено %d, пропущено %d.", res.Imported, res.Skipped)
	return res, nil
}

func (im *Importer) importRow(ctx context.Context, row PartnerRow) error {
	if row.City == "" {
		return fmt.Errorf("%w: не указан город для '%s'", common.ErrInvalidConfig, row.Name)
	}
	cityID, err := im.store.EnsureCity(ctx, row.City)
	if err != nil {
		return err
	}
	catIDs := make([]int64, 0, len(row.Categories))
	for _, name := range row.Categories {
		id, err := im.store.EnsureCategory(ctx, name)
		if err != nil {
			return err
		}
		catIDs = append(catIDs, id)
	}

	partnerID := row.PartnerID
	if partnerID == "" {
		if partnerID, err = im.GeneratePartnerID(ctx, row.City); err != nil {
			return err
		}
		log.Printf("Importer: для '%s' сгенерирован ID %s", row.Name, partnerID)
	}

	p := models.Partner{
		ID:                 partnerID,
		Type:               row.PartnerType,
		Name:               row.Name,
		Discount:           row.Discount,
		CityID:             cityID,
		CityName:           row.City,
		Contacts:           row.Contacts,
		MessagePartnerName: row.MessagePartnerName,
		Priority:           row.Priority,
		LinkedPartnerID:    row.LinkedPartnerID,
		UniqueCode:         sql.NullString{String: im.uniqueCode(), Valid: true},
	}
	return im.store.UpsertPartner(ctx, p, catIDs)
}

// GeneratePartnerID строит ID из первой буквы города и шести случайных цифр, пока не найдется свободный.
func (im *Importer) GeneratePartnerID(ctx context.Context, city string) (string, error) {
	first, _ := utf8.DecodeRuneInString(strings.ToLower(strings.TrimSpace(city)))
	if first == utf8.RuneError {
		return "", fmt.Errorf("%w: пустой город", common.ErrInvalidConfig)
	}
	const attempts = 100
	for i := 0; i < attempts; i++ {
		id := fmt.Sprintf("%c%d", first, 100000+im.intN(900000))
		exists, err := im.store.PartnerExists(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}
	return "", errors.New("не удалось сгенерировать свободный ID партнера")
}

const uniqueCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// uniqueCode - код для команды /connect. У существующего партнера код не меняется.
func (im *Importer) uniqueCode() string {
	var b strings.Builder
	for i := 0; i < 8; i++ {
		b.WriteByte(uniqueCodeAlphabet[im.intN(len(uniqueCodeAlphabet))])
	}
	return b.String()
}
