package constants

import "time"

// Message template names.
// Имена шаблонов совпадают с записями таблицы message_templates.
const (
	TPL_INVALID_SALON_ID       = "invalid_salon_id"
	TPL_SALON_NOT_FOUND        = "salon_not_found"
	TPL_ALREADY_VISITED        = "already_visited"
	TPL_WELCOME_BACK           = "welcome_back"
	TPL_START_MESSAGE          = "start_message"
	TPL_DATA_LOADING_ERROR     = "data_loading_error"
	TPL_SPIN_WHEEL_FIRST       = "spin_wheel_first"
	TPL_USER_DECLINED          = "user_declined"
	TPL_ACCEPT_TERMS           = "accept_terms"
	TPL_NO_DISCOUNTS_AVAILABLE = "no_discounts_available"
	TPL_SPINNING_WHEEL         = "spinning_wheel_message"
	TPL_GET_DISCOUNT           = "get_discount_message"
	TPL_CLAIM_DISCOUNT         = "claim_discount"
	TPL_DISCOUNT_OFFER         = "discount_offer"
	TPL_ALREADY_CLAIMED        = "already_claimed"
	TPL_GENERAL_ERROR          = "general_error"
)

// Template placeholder keys.
const (
	PARAM_DISCOUNT           = "discount"
	PARAM_SALON_NAME         = "salon_name"
	PARAM_CONTACTS           = "contacts"
	PARAM_MESSAGE_SALON_NAME = "message_salon_name"
	PARAM_CATEGORIES         = "categories"
	PARAM_ATTEMPTS_LEFT      = "attempts_left"
)

// Inbound tokens (после нормализации к нижнему регистру).
const (
	TOKEN_YES         = "да"
	TOKEN_NO          = "нет"
	TOKEN_ACCEPT      = "1"
	TOKEN_DECLINE     = "2"
	TOKEN_UPDATE_DATA = "update data"
)

// Service texts that are not admin-managed templates.
const (
	MSG_DATA_UPDATED      = "Данные успешно обновлены"
	MSG_DATA_UPDATE_ERROR = "Не удалось обновить данные"

	MSG_TG_GREETING        = "Привет! Я бот для оповещений Сарафан."
	MSG_TG_CONNECT_USAGE   = "Неверный формат команды. Используйте: `/connect <код>`"
	MSG_TG_CONNECT_OK      = "Telegram-оповещения успешно подключены!"
	MSG_TG_CONNECT_UNKNOWN = "Неверный код. Пожалуйста, проверьте код и попробуйте снова."
	MSG_TG_CONNECT_ERROR   = "Произошла ошибка при подключении. Попробуйте позже."
	MSG_TG_REFERRAL_LINK   = "Ваша ссылка для клиентов: %s"
	MSG_TG_EXPORT_DENIED   = "Команда доступна только администраторам."
	MSG_TG_EXPORT_CAPTION  = "📊 Статистика партнеров"
	MSG_TG_EXPORT_ERROR    = "Не удалось сформировать выгрузку."

	MSG_NOTIFY_NEW_CLIENT     = "🎉 Новый клиент! 🎉\n\n%s (%s) воспользовался(ась) вашей скидкой."
	MSG_NOTIFY_BROUGHT_CLIENT = "🎉 Вы привели нового клиента! 🎉\n\n%s (%s) воспользовался(ась) скидкой в салоне %s."
)

const (
	DEFAULT_CLIENT_NAME  = "Клиент"
	DEFAULT_SPIN_DELAY   = 3 * time.Second
	DEFAULT_SHEET_RANGE  = "A2:J"
	DEFAULT_PORT         = "8080"
	WHATSAPP_CHAT_SUFFIX = "@s.whatsapp.net"
	IMPORT_COLUMNS       = 10
	CATEGORY_SEPARATOR   = " • "
	STATS_FILE_NAME      = "partner_stats.xlsx"
)
