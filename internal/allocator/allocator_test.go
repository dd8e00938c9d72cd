package allocator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sarafan/internal/common"
	"sarafan/internal/models"
)

var defaultTestWeights = models.WeightSettings{HighBandWeight: 3, MidBandWeight: 2, LowBandWeight: 1}

func newTestAllocator(cat *memCatalog, led *memLedger, weights models.WeightSettings, seed uint64) *Allocator {
	return New(cat, led, NewStaticWeightPolicy(weights), WithRand(rand.New(rand.NewPCG(seed, seed+1))))
}

func TestSelectDiscountPrecedence(t *testing.T) {
	// origin (cat 1) ссылается на linked (cat 2); prio (cat 3) приоритетный; plain (cat 4) обычный.
	origin := withLink(partner("origin", 1, 1), "linked")
	linked := partner("linked", 1, 2)
	prio := withPriority(partner("prio", 1, 3))
	plain := partner("plain", 1, 4)
	// Приоритетный партнер, уже посещенный клиентом: под первое правило не попадает никогда.
	visitedPrio := withPriority(partner("visited-prio", 1, 5))

	cat := newMemCatalog(origin, linked, prio, plain, visitedPrio)
	led := newMemLedger(cat)
	led.set("c1", "origin", models.StatusVisited)
	led.set("c1", "visited-prio", models.StatusRejected)
	ctx := context.Background()

	t.Run("linked partner wins over priority and weighted", func(t *testing.T) {
		for seed := uint64(0); seed < 20; seed++ {
			a := newTestAllocator(cat, led, defaultTestWeights, seed)
			d, err := a.SelectDiscount(ctx, session("c1", "origin"))
			require.NoError(t, err)
			assert.Equal(t, "linked", d.Partner.ID)
			assert.False(t, d.Priority)
		}
	})

	t.Run("priority wins once linked partner is excluded", func(t *testing.T) {
		led.set("c1", "linked", models.StatusRejected)
		defer delete(led.rows["c1"], "linked")
		for seed := uint64(0); seed < 20; seed++ {
			a := newTestAllocator(cat, led, defaultTestWeights, seed)
			d, err := a.SelectDiscount(ctx, session("c1", "origin"))
			require.NoError(t, err)
			assert.Equal(t, "prio", d.Partner.ID)
			assert.True(t, d.Priority)
		}
	})

	t.Run("weighted fallback when no linked and no priority", func(t *testing.T) {
		led.set("c1", "linked", models.StatusRejected)
		led.set("c1", "prio", models.StatusClaimed)
		defer delete(led.rows["c1"], "linked")
		defer delete(led.rows["c1"], "prio")
		a := newTestAllocator(cat, led, defaultTestWeights, 7)
		d, err := a.SelectDiscount(ctx, session("c1", "origin"))
		require.NoError(t, err)
		assert.Equal(t, "plain", d.Partner.ID)
		assert.False(t, d.Priority)
	})
}

func TestSelectDiscountLinkedPartnerRules(t *testing.T) {
	ctx := context.Background()

	t.Run("dangling link falls through", func(t *testing.T) {
		cat := newMemCatalog(withLink(partner("origin", 1, 1), "ghost"), partner("plain", 1, 2))
		led := newMemLedger(cat)
		led.set("c1", "origin", models.StatusVisited)
		d, err := newTestAllocator(cat, led, defaultTestWeights, 1).SelectDiscount(ctx, session("c1", "origin"))
		require.NoError(t, err)
		assert.Equal(t, "plain", d.Partner.ID)
	})

	t.Run("linked partner sharing an excluded category is skipped", func(t *testing.T) {
		cat := newMemCatalog(withLink(partner("origin", 1, 1), "linked"), partner("linked", 1, 1, 9), partner("plain", 1, 2))
		led := newMemLedger(cat)
		led.set("c1", "origin", models.StatusVisited)
		d, err := newTestAllocator(cat, led, defaultTestWeights, 1).SelectDiscount(ctx, session("c1", "origin"))
		require.NoError(t, err)
		assert.Equal(t, "plain", d.Partner.ID)
	})

	t.Run("linked partner in another city is still offered", func(t *testing.T) {
		cat := newMemCatalog(withLink(partner("origin", 1, 1), "far"), partner("far", 2, 3))
		led := newMemLedger(cat)
		led.set("c1", "origin", models.StatusVisited)
		d, err := newTestAllocator(cat, led, defaultTestWeights, 1).SelectDiscount(ctx, session("c1", "origin"))
		require.NoError(t, err)
		assert.Equal(t, "far", d.Partner.ID)
	})
}

func TestSelectDiscountNoneAvailable(t *testing.T) {
	ctx := context.Background()
	cat := newMemCatalog(partner("origin", 1, 1), partner("same-cat", 1, 1), partner("other-city", 2, 2))
	led := newMemLedger(cat)
	led.set("c1", "origin", models.StatusVisited)

	_, err := newTestAllocator(cat, led, defaultTestWeights, 1).SelectDiscount(ctx, session("c1", "origin"))
	assert.ErrorIs(t, err, common.ErrNoneAvailable)
}

func TestSelectDiscountZeroWeightsUnreachable(t *testing.T) {
	ctx := context.Background()
	cat := newMemCatalog(
		partner("origin", 1, 1),
		withCounters(partner("low", 1, 2), 0, 0),
		withCounters(partner("high", 1, 3), 4, 10),
	)
	led := newMemLedger(cat)
	led.set("c1", "origin", models.StatusVisited)

	weights := models.WeightSettings{HighBandWeight: 1, MidBandWeight: 1, LowBandWeight: 0}
	for seed := uint64(0); seed < 30; seed++ {
		d, err := newTestAllocator(cat, led, weights, seed).SelectDiscount(ctx, session("c1", "origin"))
		require.NoError(t, err)
		assert.Equal(t, "high", d.Partner.ID)
	}

	_, err := newTestAllocator(cat, led, models.WeightSettings{}, 1).SelectDiscount(ctx, session("c1", "origin"))
	assert.ErrorIs(t, err, common.ErrNoneAvailable)
}

func TestSelectDiscountConfigurationMissing(t *testing.T) {
	ctx := context.Background()
	cat := newMemCatalog(partner("origin", 1, 1), partner("plain", 1, 2))
	led := newMemLedger(cat)
	led.set("c1", "origin", models.StatusVisited)

	a := New(cat, led, NewWeightPolicy(&stubWeightSource{err: common.ErrNotFound}))
	_, err := a.SelectDiscount(ctx, session("c1", "origin"))
	assert.ErrorIs(t, err, common.ErrConfigurationMissing)
}

func TestSelectDiscountUnknownOrigin(t *testing.T) {
	cat := newMemCatalog(partner("plain", 1, 2))
	_, err := newTestAllocator(cat, newMemLedger(cat), defaultTestWeights, 1).
		SelectDiscount(context.Background(), session("c1", "missing"))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestWeightedDistribution(t *testing.T) {
	ctx := context.Background()
	cat := newMemCatalog(
		partner("origin", 1, 1),
		withCounters(partner("high", 1, 2), 4, 10),
		withCounters(partner("mid", 1, 3), 3, 10),
		withCounters(partner("low", 1, 4), 0, 0),
	)
	led := newMemLedger(cat)
	led.set("c1", "origin", models.StatusVisited)
	a := newTestAllocator(cat, led, defaultTestWeights, 42)

	const draws = 10000
	counts := make(map[string]int)
	for i := 0; i < draws; i++ {
		d, err := a.SelectDiscount(ctx, session("c1", "origin"))
		require.NoError(t, err)
		counts[d.Partner.ID]++
	}

	assert.InDelta(t, 3.0/6.0, float64(counts["high"])/draws, 0.03)
	assert.InDelta(t, 2.0/6.0, float64(counts["mid"])/draws, 0.03)
	assert.InDelta(t, 1.0/6.0, float64(counts["low"])/draws, 0.03)
}

func TestSelectDiscountNeverReturnsExcluded(t *testing.T) {
	ctx := context.Background()
	gen := rand.New(rand.NewPCG(2024, 10))

	for iter := 0; iter < 300; iter++ {
		var partners []models.Partner
		n := 3 + gen.IntN(10)
		for i := 0; i < n; i++ {
			p := partner(fmt.Sprintf("p%d", i), int64(1+gen.IntN(2)))
			for k := 0; k < 1+gen.IntN(2); k++ {
				p.Categories = append(p.Categories, models.Category{ID: int64(1 + gen.IntN(6))})
			}
			p.Priority = gen.IntN(4) == 0
			if gen.IntN(3) == 0 {
				p = withLink(p, fmt.Sprintf("p%d", gen.IntN(n+2)))
			}
			p = withCounters(p, gen.IntN(10), gen.IntN(10))
			partners = append(partners, p)
		}
		cat := newMemCatalog(partners...)
		led := newMemLedger(cat)
		origin := partners[gen.IntN(n)]
		led.set("c", origin.ID, models.StatusVisited)
		for k := 0; k < gen.IntN(3); k++ {
			led.set("c", partners[gen.IntN(n)].ID, []string{models.StatusClaimed, models.StatusRejected}[gen.IntN(2)])
		}

		excludedPartners, _ := led.ListExcludedPartners(ctx, "c")
		excludedCategories, _ := led.ListExcludedCategories(ctx, "c")

		d, err := newTestAllocator(cat, led, defaultTestWeights, uint64(iter)).SelectDiscount(ctx, session("c", origin.ID))
		if err != nil {
			require.ErrorIs(t, err, common.ErrNoneAvailable)
			continue
		}
		_, excluded := excludedPartners[d.Partner.ID]
		assert.False(t, excluded, "iteration %d returned excluded partner %s", iter, d.Partner.ID)
		for _, c := range d.Partner.Categories {
			_, shared := excludedCategories[c.ID]
			assert.False(t, shared, "iteration %d returned partner %s sharing category %d", iter, d.Partner.ID, c.ID)
		}
	}
}
