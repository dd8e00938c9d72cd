// Package common содержит общие ошибки, используемые во всех пакетах.
package common

import "errors"

var (
	// ErrNotFound - запрошенный партнер, клиент или шаблон отсутствует.
	ErrNotFound = errors.New("not found")

	// ErrConfigurationMissing - отсутствует синглтон настроек весов.
	ErrConfigurationMissing = errors.New("weight settings missing")

	// ErrNoneAvailable - после фильтрации не осталось ни одного партнера.
	ErrNoneAvailable = errors.New("no discount available")

	// ErrExternalService - ошибка CRM, оповещений или доставки сообщений.
	ErrExternalService = errors.New("external service failure")

	// ErrUnresolvedPlaceholder - в шаблоне есть плейсхолдер без значения.
	ErrUnresolvedPlaceholder = errors.New("unresolved template placeholder")

	// ErrInvalidConfig - некорректное значение конфигурации.
	ErrInvalidConfig = errors.New("invalid configuration")
)
