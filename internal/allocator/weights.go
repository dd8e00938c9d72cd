package allocator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"sarafan/internal/common"
	"sarafan/internal/models"
)

// Band is a bucket of the brought/received ratio.
type Band string

const (
	BandHigh Band = "high" // ratio в [0.4, 0.8]
	BandMid  Band = "mid"  // ratio в [0.3, 0.4)
	BandLow  Band = "low"  // остальное, в том числе received == 0 и ratio > 0.8
)

// Classify относит партнера к полосе по отношению brought/received.
// Отношение выше 0.8 попадает в BandLow, а не в BandHigh.
func Classify(p models.Partner) Band {
	ratio, ok := p.Ratio()
	if !ok {
		return BandLow
	}
	switch {
	case ratio >= 0.4 && ratio <= 0.8:
		return BandHigh
	case ratio >= 0.3 && ratio < 0.4:
		return BandMid
	default:
		return BandLow
	}
}

// WeightFor возвращает вес полосы. Отрицательные значения считаются нулем.
func WeightFor(settings models.WeightSettings, band Band) int {
	var w int
	switch band {
	case BandHigh:
		w = settings.HighBandWeight
	case BandMid:
		w = settings.MidBandWeight
	default:
		w = settings.LowBandWeight
	}
	if w < 0 {
		return 0
	}
	return w
}

// WeightSource загружает синглтон настроек весов.
type WeightSource interface {
	GetWeightSettings(ctx context.Context) (models.WeightSettings, error)
}

// WeightPolicy хранит настройки весов, загруженные при старте.
// Перечитывается явным вызовом Refresh.
type WeightPolicy struct {
	source   WeightSource
	mu       sync.RWMutex
	settings models.WeightSettings
	loaded   bool
}

// NewWeightPolicy создает политику. До первого Refresh настройки считаются отсутствующими.
func NewWeightPolicy(source WeightSource) *WeightPolicy {
	return &WeightPolicy{source: source}
}

// NewStaticWeightPolicy создает политику с заранее известными настройками.
func NewStaticWeightPolicy(settings models.WeightSettings) *WeightPolicy {
	return &WeightPolicy{settings: settings, loaded: true}
}

// Refresh перечитывает настройки из источника.
// Если строки настроек нет, политика становится ненастроенной и возвращается ErrConfigurationMissing.
func (wp *WeightPolicy) Refresh(ctx context.Context) error {
	if wp.source == nil {
		return nil
	}
	settings, err := wp.source.GetWeightSettings(ctx)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			wp.mu.Lock()
			wp.loaded = false
			wp.mu.Unlock()
			log.Println("WeightPolicy.Refresh: Настройки весов не найдены!")
			return fmt.Errorf("%w: %v", common.ErrConfigurationMissing, err)
		}
		return fmt.Errorf("ошибка загрузки настроек весов: %w", err)
	}

	wp.mu.Lock()
	wp.settings = settings
	wp.loaded = true
	wp.mu.Unlock()
	log.Printf("WeightPolicy.Refresh: Настройки весов загружены: high=%d, mid=%d, low=%d, invited=%d",
		settings.HighBandWeight, settings.MidBandWeight, settings.LowBandWeight, settings.PartnersInvitedWeight)
	return nil
}

// Settings возвращает текущие настройки или ErrConfigurationMissing.
func (wp *WeightPolicy) Settings() (models.WeightSettings, error) {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if !wp.loaded {
		return models.WeightSettings{}, common.ErrConfigurationMissing
	}
	return wp.settings, nil
}
