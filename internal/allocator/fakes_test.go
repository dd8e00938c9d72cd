package allocator

import (
	"context"
	"database/sql"
	"sort"

	"sarafan/internal/common"
	"sarafan/internal/models"
)

type memCatalog struct {
	partners map[string]models.Partner
}

func newMemCatalog(partners ...models.Partner) *memCatalog {
	c := &memCatalog{partners: make(map[string]models.Partner)}
	for _, p := range partners {
		c.partners[p.ID] = p
	}
	return c
}

func (c *memCatalog) FindPartner(_ context.Context, id string) (models.Partner, error) {
	p, ok := c.partners[id]
	if !ok {
		return models.Partner{}, common.ErrNotFound
	}
	return p, nil
}

func (c *memCatalog) ListPartnersByCity(_ context.Context, cityID int64) ([]models.Partner, error) {
	var out []models.Partner
	for _, p := range c.partners {
		if p.CityID == cityID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memLedger struct {
	catalog *memCatalog
	rows    map[string]map[string]string
}

func newMemLedger(catalog *memCatalog) *memLedger {
	return &memLedger{catalog: catalog, rows: make(map[string]map[string]string)}
}

func (l *memLedger) set(clientID, partnerID, status string) {
	if l.rows[clientID] == nil {
		l.rows[clientID] = make(map[string]string)
	}
	l.rows[clientID][partnerID] = status
}

func (l *memLedger) ListExcludedPartners(_ context.Context, clientID string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for id := range l.rows[clientID] {
		out[id] = struct{}{}
	}
	return out, nil
}

func (l *memLedger) ListExcludedCategories(_ context.Context, clientID string) (map[int64]struct{}, error) {
	out := make(map[int64]struct{})
	for id := range l.rows[clientID] {
		if p, ok := l.catalog.partners[id]; ok {
			for _, c := range p.Categories {
				out[c.ID] = struct{}{}
			}
		}
	}
	return out, nil
}

func partner(id string, city int64, cats ...int64) models.Partner {
	p := models.Partner{ID: id, Name: "Салон " + id, CityID: city}
	for _, c := range cats {
		p.Categories = append(p.Categories, models.Category{ID: c, Name: "cat"})
	}
	return p
}

func withPriority(p models.Partner) models.Partner {
	p.Priority = true
	return p
}

func withLink(p models.Partner, linked string) models.Partner {
	p.LinkedPartnerID = sql.NullString{String: linked, Valid: true}
	return p
}

func withCounters(p models.Partner, brought, received int) models.Partner {
	p.ClientsBrought = brought
	p.ClientsReceived = received
	return p
}

func session(clientID, origin string) models.ClientSession {
	return models.ClientSession{ChatID: clientID, InitialPartnerID: origin, AttemptsLeft: 1}
}
