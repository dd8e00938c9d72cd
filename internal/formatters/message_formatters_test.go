package formatters

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sarafan/internal/common"
	"sarafan/internal/constants"
	"sarafan/internal/models"
)

type mapSource map[string]string

func (m mapSource) GetMessageTemplate(_ context.Context, name string) (models.MessageTemplate, error) {
	tpl, ok := m[name]
	if !ok {
		return models.MessageTemplate{}, common.ErrNotFound
	}
	return models.MessageTemplate{Name: name, Template: tpl}, nil
}

type brokenSource struct{}

func (brokenSource) GetMessageTemplate(context.Context, string) (models.MessageTemplate, error) {
	return models.MessageTemplate{}, errors.New("connection refused")
}

func TestFormat(t *testing.T) {
	out, err := Format("Скидка {discount} в {salon_name}", map[string]string{
		"discount":   "10%",
		"salon_name": "Ромашка",
		"unused":     "x",
	})
	require.NoError(t, err)
	assert.Equal(t, "Скидка 10% в Ромашка", out)

	out, err = Format("{{literal}} {x}", map[string]string{"x": "1"})
	require.NoError(t, err)
	assert.Equal(t, "{literal} 1", out)

	_, err = Format("Привет {name}", nil)
	assert.ErrorIs(t, err, common.ErrUnresolvedPlaceholder)

	_, err = Format("Привет {name", map[string]string{"name": "x"})
	assert.ErrorIs(t, err, common.ErrUnresolvedPlaceholder)

	_, err = Format("Привет }", nil)
	assert.ErrorIs(t, err, common.ErrUnresolvedPlaceholder)
}

func TestResolverPrefersStoredTemplate(t *testing.T) {
	r := NewResolver(mapSource{constants.TPL_WELCOME_BACK: "С возвращением!"})

	text, err := r.Resolve(context.Background(), constants.TPL_WELCOME_BACK, nil)
	require.NoError(t, err)
	assert.Equal(t, "С возвращением!", text)

	text, err = r.Resolve(context.Background(), constants.TPL_SALON_NOT_FOUND, nil)
	require.NoError(t, err)
	assert.Equal(t, "Салон с таким ID не найден.", text)
}

func TestResolverFallbacks(t *testing.T) {
	r := NewResolver(brokenSource{})
	text, err := r.Resolve(context.Background(), constants.TPL_GENERAL_ERROR, nil)
	require.NoError(t, err)
	assert.Equal(t, "Произошла ошибка. Пожалуйста, попробуйте позже.", text)

	text, err = NewResolver(nil).Resolve(context.Background(), "unknown_template", nil)
	require.NoError(t, err)
	assert.Equal(t, fallbackText, text)
}

func TestResolverDiscountOffer(t *testing.T) {
	p := models.Partner{
		Name:               "Ромашка",
		Discount:           "скидка 15%",
		Contacts:           "+7 900 000-00-00",
		MessagePartnerName: "салоне Ромашка",
		Categories:         []models.Category{{ID: 1, Name: "Маникюр"}},
	}
	text, err := NewResolver(nil).Resolve(context.Background(), constants.TPL_DISCOUNT_OFFER, PartnerParams(p, 1))
	require.NoError(t, err)
	assert.Contains(t, text, "скидка 15% в салоне Ромашка (Маникюр)")
	assert.Contains(t, text, "осталось 1 попытка")
}

func TestResolverMissingParamIsError(t *testing.T) {
	r := NewResolver(mapSource{constants.TPL_CLAIM_DISCOUNT: "Ждем вас в {unknown_key}"})
	_, err := r.Resolve(context.Background(), constants.TPL_CLAIM_DISCOUNT, PartnerParams(models.Partner{}, 0))
	assert.ErrorIs(t, err, common.ErrUnresolvedPlaceholder)
}

func TestDefaultsHaveNoUnresolvedPlaceholders(t *testing.T) {
	params := PartnerParams(models.Partner{Name: "x"}, 1)
	for name, tpl := range defaultTemplates {
		_, err := Format(tpl, params)
		assert.NoError(t, err, name)
	}
}
