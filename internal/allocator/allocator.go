// Package allocator выбирает партнера, скидку которого получит клиент.
package allocator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"

	"sarafan/internal/common"
	"sarafan/internal/models"
)

// Catalog - каталог партнеров.
type Catalog interface {
	FindPartner(ctx context.Context, id string) (models.Partner, error)
	ListPartnersByCity(ctx context.Context, cityID int64) ([]models.Partner, error)
}

// Ledger - история взаимодействий клиента с партнерами.
type Ledger interface {
	ListExcludedPartners(ctx context.Context, clientID string) (map[string]struct{}, error)
	ListExcludedCategories(ctx context.Context, clientID string) (map[int64]struct{}, error)
}

// WeightProvider отдает текущие настройки весов.
type WeightProvider interface {
	Settings() (models.WeightSettings, error)
}

// Rand - источник случайности. IntN возвращает число в [0, n).
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Decision - результат выбора.
type Decision struct {
	Partner  models.Partner
	Priority bool
}

// Allocator реализует выбор скидки. Сам ничего не изменяет:
// счетчики и статусы обновляет вызывающий код.
type Allocator struct {
	catalog Catalog
	ledger  Ledger
	weights WeightProvider
	rnd     Rand
}

// Option настраивает Allocator.
type Option func(*Allocator)

// WithRand подменяет источник случайности.
func WithRand(r Rand) Option {
	return func(a *Allocator) { a.rnd = r }
}

// New создает Allocator.
func New(catalog Catalog, ledger Ledger, weights WeightProvider, opts ...Option) *Allocator {
	a := &Allocator{
		catalog: catalog,
		ledger:  ledger,
		weights: weights,
		rnd:     globalRand{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// exclusions - множества, исключаемые из выбора для клиента.
type exclusions struct {
	partners   map[string]struct{}
	categories map[int64]struct{}
}

func (e exclusions) hasPartner(id string) bool {
	_, ok := e.partners[id]
	return ok
}

func (e exclusions) sharesCategory(p models.Partner) bool {
	for id := range p.CategoryIDs() {
		if _, ok := e.categories[id]; ok {
			return true
		}
	}
	return false
}

// SelectDiscount выбирает партнера для клиента. Первый непустой пул побеждает:
//  1. приоритетные партнеры города из исключенных множеств, затем без них;
//  2. связанный партнер партнера-источника;
//  3. приоритетные партнеры города без исключенных;
//  4. взвешенный случайный выбор среди оставшихся партнеров города.
//
// Возвращает common.ErrNoneAvailable, если кандидатов нет, и
// common.ErrConfigurationMissing, если не загружены настройки весов.
func (a *Allocator) SelectDiscount(ctx context.Context, session models.ClientSession) (Decision, error) {
	origin, err := a.catalog.FindPartner(ctx, session.InitialPartnerID)
	if err != nil {
		return Decision{}, fmt.Errorf("партнер-источник %s: %w", session.InitialPartnerID, err)
	}

	excl, err := a.loadExclusions(ctx, session.ChatID)
	if err != nil {
		return Decision{}, err
	}

	cityPartners, err := a.catalog.ListPartnersByCity(ctx, origin.CityID)
	if err != nil {
		return Decision{}, fmt.Errorf("ошибка получения партнеров города %d: %w", origin.CityID, err)
	}

	// 1. Фильтр сначала оставляет только исключенных, затем их же убирает.
	preFiltered := filter(cityPartners, func(p models.Partner) bool {
		return p.Priority && excl.hasPartner(p.ID) && excl.sharesCategory(p)
	})
	preFiltered = filter(preFiltered, func(p models.Partner) bool {
		return !excl.hasPartner(p.ID) && !excl.sharesCategory(p)
	})
	if len(preFiltered) > 0 {
		chosen := preFiltered[a.rnd.IntN(len(preFiltered))]
		log.Printf("SelectDiscount: Найден приоритетный салон в городе клиента: %s", chosen.Name)
		return Decision{Partner: chosen, Priority: true}, nil
	}

	// 2. Связанный партнер.
	if linked, ok := a.linkedPartner(ctx, origin, excl); ok {
		log.Printf("SelectDiscount: Найден связанный салон: %s", linked.Name)
		return Decision{Partner: linked, Priority: false}, nil
	}

	available := filter(cityPartners, func(p models.Partner) bool {
		return !excl.hasPartner(p.ID) && !excl.sharesCategory(p)
	})

	// 3. Приоритетные партнеры города.
	priority := filter(available, func(p models.Partner) bool { return p.Priority })
	if len(priority) > 0 {
		chosen := priority[a.rnd.IntN(len(priority))]
		return Decision{Partner: chosen, Priority: true}, nil
	}

	// 4. Взвешенный выбор.
	if len(available) == 0 {
		log.Printf("SelectDiscount: Не удалось найти доступные салоны в городе %d для клиента %s, кроме взаимодействовавших с клиентом", origin.CityID, session.ChatID)
		return Decision{}, common.ErrNoneAvailable
	}

	settings, err := a.weights.Settings()
	if err != nil {
		log.Println("SelectDiscount: Настройки весов не найдены!")
		return Decision{}, err
	}

	pool := weightedPool(available, settings)
	if len(pool) == 0 {
		log.Printf("SelectDiscount: Все кандидаты города %d имеют нулевой вес", origin.CityID)
		return Decision{}, common.ErrNoneAvailable
	}
	return Decision{Partner: pool[a.rnd.IntN(len(pool))], Priority: false}, nil
}

func (a *Allocator) loadExclusions(ctx context.Context, clientID string) (exclusions, error) {
	partners, err := a.ledger.ListExcludedPartners(ctx, clientID)
	if err != nil {
		return exclusions{}, fmt.Errorf("ошибка получения посещенных салонов клиента %s: %w", clientID, err)
	}
	categories, err := a.ledger.ListExcludedCategories(ctx, clientID)
	if err != nil {
		return exclusions{}, fmt.Errorf("ошибка получения категорий клиента %s: %w", clientID, err)
	}
	return exclusions{partners: partners, categories: categories}, nil
}

func (a *Allocator) linkedPartner(ctx context.Context, origin models.Partner, excl exclusions) (models.Partner, bool) {
	if !origin.LinkedPartnerID.Valid || origin.LinkedPartnerID.String == "" {
		return models.Partner{}, false
	}
	linkedID := origin.LinkedPartnerID.String
	if excl.hasPartner(linkedID) {
		return models.Partner{}, false
	}
	linked, err := a.catalog.FindPartner(ctx, linkedID)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			log.Printf("SelectDiscount: ошибка получения связанного салона %s: %v", linkedID, err)
		}
		return models.Partner{}, false
	}
	if excl.sharesCategory(linked) {
		return models.Partner{}, false
	}
	return linked, true
}

// weightedPool повторяет каждого кандидата столько раз, каков вес его полосы.
func weightedPool(candidates []models.Partner, settings models.WeightSettings) []models.Partner {
	var pool []models.Partner
	for _, p := range candidates {
		w := WeightFor(settings, Classify(p))
		for i := 0; i < w; i++ {
			pool = append(pool, p)
		}
	}
	return pool
}

func filter(partners []models.Partner, keep func(models.Partner) bool) []models.Partner {
	out := make([]models.Partner, 0, len(partners))
	for _, p := range partners {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}
