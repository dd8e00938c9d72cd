package formatters

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"sarafan/internal/common"
	"sarafan/internal/constants"
	"sarafan/internal/models"
)

// fallbackText отдается, если для имени шаблона нет ни записи в БД, ни встроенного текста.
const fallbackText = "Произошла ошибка. Попробуйте позже."

// defaultTemplates - встроенные тексты сообщений, используемые при отсутствии записи в message_templates.
var defaultTemplates = map[string]string{
	constants.TPL_INVALID_SALON_ID:       "Неверный формат ID салона. ID должен состоять только из цифр.",
	constants.TPL_SALON_NOT_FOUND:        "Салон с таким ID не найден.",
	constants.TPL_ALREADY_VISITED:        "Вы уже получали скидку в этом салоне.",
	constants.TPL_WELCOME_BACK:           "Рады видеть Вас снова!",
	constants.TPL_START_MESSAGE:          "👋 Привет! Добро пожаловать в сервис «Сарафан»! 🎉",
	constants.TPL_DATA_LOADING_ERROR:     "Ошибка при загрузке данных. Пожалуйста, начните сначала.",
	constants.TPL_SPIN_WHEEL_FIRST:       "Чтобы получить скидку, сначала нужно сыграть в колесо фортуны. Напишите 'Да', чтобы начать.",
	constants.TPL_USER_DECLINED:          "Хорошо. ",
	constants.TPL_ACCEPT_TERMS:           "Извините, но для участия в акции необходимо принять условия использования сервиса. Без этого мы не можем предоставить вам скидку. Пожалуйста, ознакомьтесь с условиями и дайте согласие, чтобы продолжить.",
	constants.TPL_NO_DISCOUNTS_AVAILABLE: "Извините, нет доступных скидок.",
	constants.TPL_SPINNING_WHEEL:         " Запускаю колесо фортуны...",
	constants.TPL_GET_DISCOUNT:           "✨ И вам выпадает {discount} в {message_salon_name} ({categories})! 🤩\n\n📞 Контакты: {contacts}",
	constants.TPL_CLAIM_DISCOUNT:         "Поздравляем! В ближайшее время с Вами свяжется администратор из {message_salon_name}.\n\n Контактные данные: {contacts}",
	constants.TPL_DISCOUNT_OFFER:         "✨ И вам выпадает {discount} в {message_salon_name} ({categories})! 🤩\n\nХотите забрать подарок?\n\n1 - Да / 2 - Нет (осталось {attempts_left} попытка)",
	constants.TPL_ALREADY_CLAIMED:        "Вы уже получили свой подарок. Чтобы сыграть снова, перейдите по ссылке другого партнера.",
	constants.TPL_GENERAL_ERROR:          "Произошла ошибка. Пожалуйста, попробуйте позже.",
}

// DefaultTemplate возвращает встроенный текст шаблона.
func DefaultTemplate(name string) (string, bool) {
	tpl, ok := defaultTemplates[name]
	return tpl, ok
}

// TemplateSource - хранилище переопределений шаблонов.
type TemplateSource interface {
	GetMessageTemplate(ctx context.Context, name string) (models.MessageTemplate, error)
}

// Resolver подбирает текст шаблона и подставляет параметры.
type Resolver struct {
	source TemplateSource
}

// NewResolver создает Resolver. source может быть nil - тогда используются только встроенные тексты.
func NewResolver(source TemplateSource) *Resolver {
	return &Resolver{source: source}
}

// Resolve возвращает готовый текст сообщения.
// Ошибка возвращается только при неразрешенном плейсхолдере.
func (r *Resolver) Resolve(ctx context.Context, name string, params map[string]string) (string, error) {
	tpl := r.lookup(ctx, name)
	text, err := Format(tpl, params)
	if err != nil {
		return "", fmt.Errorf("шаблон %q: %w", name, err)
	}
	return text, nil
}

func (r *Resolver) lookup(ctx context.Context, name string) string {
	if r.source != nil {
		stored, err := r.source.GetMessageTemplate(ctx, name)
		if err == nil {
			return stored.Template
		}
		if !errors.Is(err, common.ErrNotFound) {
			log.Printf("Resolver.lookup: ошибка чтения шаблона '%s' из БД: %v. Используется текст по умолчанию.", name, err)
		}
	}
	if tpl, ok := defaultTemplates[name]; ok {
		return tpl
	}
	log.Printf("Resolver.lookup: шаблон '%s' не найден, используется общий текст ошибки.", name)
	return fallbackText
}

// Format подставляет значения в плейсхолдеры вида {name}.
// "{{" и "}}" дают литеральные скобки. Параметры без плейсхолдера игнорируются.
func Format(tpl string, params map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(tpl))
	for i := 0; i < len(tpl); i++ {
		ch := tpl[i]
		switch ch {
		case '{':
			if i+1 < len(tpl) && tpl[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(tpl[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: незакрытая скобка на позиции %d", common.ErrUnresolvedPlaceholder, i)
			}
			key := strings.TrimSpace(tpl[i+1 : i+1+end])
			value, ok := params[key]
			if !ok {
				return "", fmt.Errorf("%w: {%s}", common.ErrUnresolvedPlaceholder, key)
			}
			b.WriteString(value)
			i += end + 1
		case '}':
			if i+1 < len(tpl) && tpl[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("%w: одиночная '}' на позиции %d", common.ErrUnresolvedPlaceholder, i)
		default:
			b.WriteByte(ch)
		}
	}
	return b.String(), nil
}

// PartnerParams собирает полный набор параметров шаблонов для партнера.
func PartnerParams(p models.Partner, attemptsLeft int) map[string]string {
	return map[string]string{
		constants.PARAM_DISCOUNT:           p.Discount,
		constants.PARAM_SALON_NAME:         p.Name,
		constants.PARAM_CONTACTS:           p.Contacts,
		constants.PARAM_MESSAGE_SALON_NAME: p.DisplayName(),
		constants.PARAM_CATEGORIES:         p.CategoryNames(),
		constants.PARAM_ATTEMPTS_LEFT:      strconv.Itoa(attemptsLeft),
	}
}
