package models

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"
)

// Partner types.
const (
	PartnerTypeSalon      = "salon"
	PartnerTypeIndividual = "individual"
)

// Category represents a service category of a partner.
type Category struct {
	ID   int64
	Name string
}

// Partner represents a salon or an individual provider offering a discount.
type Partner struct {
	ID                 string // Префикс города + случайные цифры, например "м123456"
	Type               string
	Name               string
	Discount           string // Текст предложения
	Contacts           string
	MessagePartnerName string // Название для подстановки в сообщения клиенту
	CityID             int64
	CityName           string
	Categories         []Category
	Priority           bool
	LinkedPartnerID    sql.NullString // Может ссылаться на несуществующего партнера
	ClientsBrought     int
	ClientsReceived    int
	PartnersInvited    int
	OwnerChatID        sql.NullInt64  // Telegram chat для оповещений владельца
	UniqueCode         sql.NullString // Код для команды /connect
}

// CategoryIDs возвращает множество ID категорий партнера.
func (p Partner) CategoryIDs() map[int64]struct{} {
	ids := make(map[int64]struct{}, len(p.Categories))
	for _, c := range p.Categories {
		ids[c.ID] = struct{}{}
	}
	return ids
}

// CategoryNames возвращает названия категорий через запятую, как их видит клиент.
func (p Partner) CategoryNames() string {
	names := make([]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		names = append(names, c.Name)
	}
	return strings.Join(names, ", ")
}

// DisplayName возвращает название для сообщений, если оно задано, иначе основное название.
func (p Partner) DisplayName() string {
	if p.MessagePartnerName != "" {
		return p.MessagePartnerName
	}
	return p.Name
}

// Ratio возвращает отношение brought/received.
// ok == false, когда received == 0 (отношение считается бесконечным).
func (p Partner) Ratio() (ratio float64, ok bool) {
	if p.ClientsReceived <= 0 {
		return 0, false
	}
	return float64(p.ClientsBrought) / float64(p.ClientsReceived), true
}

// TriggerPrefix - фраза, с которой начинается сообщение клиента по реферальной ссылке.
const TriggerPrefix = "получить подарок"

// ReferralText формирует текст, который клиент отправляет по ссылке партнера.
func ReferralText(partnerID string) string {
	return fmt.Sprintf("Получить подарок (%s)", partnerID)
}

// ReferralLink формирует ссылку wa.me с предзаполненным текстом.
func ReferralLink(botPhone, partnerID string) (string, error) {
	phone := strings.TrimPrefix(strings.TrimSpace(botPhone), "+")
	if phone == "" {
		return "", fmt.Errorf("номер бота не настроен")
	}
	if partnerID == "" {
		return "", fmt.Errorf("пустой ID партнера для реферальной ссылки")
	}
	return fmt.Sprintf("https://wa.me/%s?text=%s", phone, url.QueryEscape(ReferralText(partnerID))), nil
}

// ParseTrigger извлекает ID партнера из нормализованного (нижний регистр) текста
// "получить подарок (<id>)". ok == false, если текст не является триггером.
func ParseTrigger(normalized string) (partnerID string, ok bool) {
	if !strings.HasPrefix(normalized, TriggerPrefix) {
		return "", false
	}
	rest := normalized
	if idx := strings.Index(normalized, TriggerPrefix+" ("); idx >= 0 {
		rest = normalized[idx+len(TriggerPrefix)+2:]
	}
	return strings.TrimSpace(strings.ReplaceAll(rest, ")", "")), true
}
