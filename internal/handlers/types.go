package handlers

import (
	"context"
	"log"
	"strings"
	"sync"

	"sarafan/internal/allocator"
	"sarafan/internal/config"
	"sarafan/internal/crm"
	"sarafan/internal/importer"
	"sarafan/internal/messaging"
	"sarafan/internal/models"
	"sarafan/internal/session"
)

// Store - операции хранилища, которые нужны обработчикам.
type Store interface {
	FindPartner(ctx context.Context, id string) (models.Partner, error)
	ListAllPartners(ctx context.Context) ([]models.Partner, error)
	IncrementBrought(ctx context.Context, partnerID string) error
	IncrementReceived(ctx context.Context, partnerID string) error
	BindOwnerChat(ctx context.Context, uniqueCode string, chatID int64) (models.Partner, error)

	GetClient(ctx context.Context, chatID string) (models.ClientSession, error)
	CreateClient(ctx context.Context, c models.ClientSession) error
	SaveClient(ctx context.Context, c models.ClientSession) error

	GetStatus(ctx context.Context, clientID, partnerID string) (status string, ok bool, err error)
	SetStatus(ctx context.Context, clientID, partnerID, status string) error
}

// Allocator выбирает скидку для клиента.
type Allocator interface {
	SelectDiscount(ctx context.Context, s models.ClientSession) (allocator.Decision, error)
}

// TemplateResolver подставляет параметры в шаблон сообщения.
type TemplateResolver interface {
	Resolve(ctx context.Context, name string, params map[string]string) (string, error)
}

// Notifier отправляет оповещения владельцам партнеров в Telegram.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// DocumentSender отправляет файлы в Telegram.
type DocumentSender interface {
	SendDocument(ctx context.Context, chatID int64, fileName string, data []byte, caption string) error
}

// CatalogRefresher обновляет каталог партнеров из таблицы.
type CatalogRefresher interface {
	Refresh(ctx context.Context) (importer.Result, error)
}

// HandlerDependencies содержит все зависимости, необходимые для обработчиков.
type HandlerDependencies struct {
	Config         *config.Config
	Store          Store
	Allocator      Allocator
	Templates      TemplateResolver
	Sender         messaging.Sender
	CRM            crm.Client
	Notifier       Notifier // может быть nil, если Telegram не настроен
	Documents      DocumentSender
	Pacer          Pacer
	SessionManager *session.SessionManager
	Refresher      CatalogRefresher // может быть nil
}

// Inbound - нормализованное входящее сообщение клиента.
type Inbound struct {
	ClientID   string
	Text       string
	FromBot    bool
	SenderName string
}

// BotHandler инкапсулирует логику диалога с клиентом и команд Telegram-бота.
type BotHandler struct {
	Deps HandlerDependencies
	wg   sync.WaitGroup
}

// NewBotHandler создает новый экземпляр BotHandler.
func NewBotHandler(deps HandlerDependencies) *BotHandler {
	if deps.Config == nil || deps.Store == nil || deps.Allocator == nil || deps.Templates == nil ||
		deps.Sender == nil || deps.SessionManager == nil {
		// Это критическая ошибка конфигурации, приложение не сможет работать корректно.
		panic("Не все зависимости для BotHandler были предоставлены.")
	}
	if deps.CRM == nil {
		deps.CRM = crm.LogClient{}
	}
	if deps.Pacer == nil {
		deps.Pacer = DelayPacer{Delay: deps.Config.SpinDelay}
	}
	return &BotHandler{Deps: deps}
}

// Dispatch ставит сообщение в очередь клиента и сразу возвращается.
// Сообщения одного клиента обрабатываются в порядке поступления, разных клиентов параллельно.
// Паника при обработке перехватывается и не затрагивает других клиентов.
func (bh *BotHandler) Dispatch(in Inbound) {
	bh.wg.Add(1)
	bh.Deps.SessionManager.Enqueue(strings.TrimSpace(in.ClientID), func() {
		defer bh.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Dispatch: ПАНИКА при обработке сообщения клиента %s: %v", in.ClientID, r)
			}
		}()
		bh.HandleMessage(context.Background(), in)
	})
}

// Wait ждет завершения всех сообщений, запущенных через Dispatch.
func (bh *BotHandler) Wait() {
	bh.wg.Wait()
}
