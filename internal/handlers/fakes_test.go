package handlers

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"sarafan/internal/allocator"
	"sarafan/internal/config"
	"sarafan/internal/db"
	"sarafan/internal/formatters"
	"sarafan/internal/importer"
	"sarafan/internal/messaging"
	"sarafan/internal/models"
	"sarafan/internal/session"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []messaging.OutboundMessage
}

func (r *recordingSender) Send(_ context.Context, msg messaging.OutboundMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

// templates возвращает имена шаблонов, отправленных клиенту, по порядку.
func (r *recordingSender) templates(clientID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.sent {
		if m.ClientID == clientID {
			out = append(out, m.Template)
		}
	}
	return out
}

func (r *recordingSender) last(clientID string) messaging.OutboundMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].ClientID == clientID {
			return r.sent[i]
		}
	}
	return messaging.OutboundMessage{}
}

func (r *recordingSender) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

type notification struct {
	ChatID int64
	Text   string
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []notification
	docs  []string
}

func (n *recordingNotifier) Notify(_ context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, notification{ChatID: chatID, Text: text})
	return nil
}

func (n *recordingNotifier) SendDocument(_ context.Context, chatID int64, fileName string, data []byte, caption string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.docs = append(n.docs, fileName)
	return nil
}

type recordingCRM struct {
	mu       sync.Mutex
	contacts int
	leads    int
}

func (c *recordingCRM) UpsertContact(context.Context, models.ClientSession) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contacts++
	return int64(c.contacts), nil
}

func (c *recordingCRM) UpsertLead(context.Context, models.ClientSession, int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leads++
	return nil
}

type noPause struct{}

func (noPause) Pause(context.Context) error { return nil }

type firstRand struct{}

func (firstRand) IntN(int) int { return 0 }

type stubRefresher struct{ calls int }

func (s *stubRefresher) Refresh(context.Context) (importer.Result, error) {
	s.calls++
	return importer.Result{Imported: 1}, nil
}

type testEnv struct {
	store     *db.Store
	handler   *BotHandler
	sender    *recordingSender
	notifier  *recordingNotifier
	crm       *recordingCRM
	refresher *stubRefresher
	cityID    int64
}

func newTestEnv(t *testing.T, pacer Pacer) *testEnv {
	t.Helper()
	ctx := context.Background()
	store, err := db.Open(db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(ctx))

	cityID, err := store.EnsureCity(ctx, "Москва")
	require.NoError(t, err)

	if pacer == nil {
		pacer = noPause{}
	}
	env := &testEnv{
		store:     store,
		sender:    &recordingSender{},
		notifier:  &recordingNotifier{},
		crm:       &recordingCRM{},
		refresher: &stubRefresher{},
		cityID:    cityID,
	}
	cfg := &config.Config{
		BotChatID:    "79990000000",
		AdminChatIDs: map[string]struct{}{"79000000001": {}},
	}
	env.handler = NewBotHandler(HandlerDependencies{
		Config: cfg,
		Store:  store,
		Allocator: allocator.New(store, store,
			allocator.NewStaticWeightPolicy(models.DefaultWeightSettings()),
			allocator.WithRand(firstRand{})),
		Templates:      formatters.NewResolver(store),
		Sender:         env.sender,
		CRM:            env.crm,
		Notifier:       env.notifier,
		Documents:      env.notifier,
		Pacer:          pacer,
		SessionManager: session.NewSessionManager(),
		Refresher:      env.refresher,
	})
	return env
}

type partnerOpt func(*models.Partner)

func priority(p *models.Partner) { p.Priority = true }

func linkedTo(id string) partnerOpt {
	return func(p *models.Partner) { p.LinkedPartnerID = sql.NullString{String: id, Valid: true} }
}

func (e *testEnv) addPartner(t *testing.T, id, category string, opts ...partnerOpt) {
	t.Helper()
	ctx := context.Background()
	catID, err := e.store.EnsureCategory(ctx, category)
	require.NoError(t, err)
	p := models.Partner{
		ID:       id,
		Type:     models.PartnerTypeSalon,
		Name:     "Салон " + id,
		Discount: "-10%",
		CityID:   e.cityID,
		Contacts: "+7 900 " + id,
	}
	for _, opt := range opts {
		opt(&p)
	}
	require.NoError(t, e.store.UpsertPartner(ctx, p, []int64{catID}))
}

func (e *testEnv) bindOwner(t *testing.T, id, code string, chatID int64) {
	t.Helper()
	ctx := context.Background()
	p, err := e.store.FindPartner(ctx, id)
	require.NoError(t, err)
	p.UniqueCode = sql.NullString{String: code, Valid: true}
	catIDs := make([]int64, 0, len(p.Categories))
	for _, c := range p.Categories {
		catIDs = append(catIDs, c.ID)
	}
	require.NoError(t, e.store.UpsertPartner(ctx, p, catIDs))
	_, err = e.store.BindOwnerChat(ctx, code, chatID)
	require.NoError(t, err)
}

func (e *testEnv) say(clientID, text string) {
	e.handler.HandleMessage(context.Background(), Inbound{ClientID: clientID, Text: text, SenderName: "Анна"})
}

func (e *testEnv) partner(t *testing.T, id string) models.Partner {
	t.Helper()
	p, err := e.store.FindPartner(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (e *testEnv) client(t *testing.T, id string) models.ClientSession {
	t.Helper()
	s, err := e.store.GetClient(context.Background(), id)
	require.NoError(t, err)
	return s
}

func (e *testEnv) status(t *testing.T, clientID, partnerID string) string {
	t.Helper()
	st, _, err := e.store.GetStatus(context.Background(), clientID, partnerID)
	require.NoError(t, err)
	return st
}
