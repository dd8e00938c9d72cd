package telegram_api

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sarafan/internal/common"
)

type fakeAPI struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func TestNotifySendsMessage(t *testing.T) {
	api := &fakeAPI{}
	bc := &BotClient{api: api}

	require.NoError(t, bc.Notify(context.Background(), 42, "Новый клиент"))
	require.Len(t, api.sent, 1)
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, "Новый клиент", msg.Text)
}

func TestNotifyWrapsTransportError(t *testing.T) {
	bc := &BotClient{api: &fakeAPI{err: errors.New("timeout")}}
	err := bc.Notify(context.Background(), 42, "x")
	assert.ErrorIs(t, err, common.ErrExternalService)
}

func TestNotifyRejectsEmptyChat(t *testing.T) {
	api := &fakeAPI{}
	bc := &BotClient{api: api}
	assert.Error(t, bc.Notify(context.Background(), 0, "x"))
	assert.Empty(t, api.sent)
}

func TestSendDocument(t *testing.T) {
	api := &fakeAPI{}
	bc := &BotClient{api: api}
	require.NoError(t, bc.SendDocument(context.Background(), 7, "stats.xlsx", []byte("data"), "Статистика"))
	doc, ok := api.sent[0].(tgbotapi.DocumentConfig)
	require.True(t, ok)
	assert.Equal(t, "Статистика", doc.Caption)
}

func TestUninitializedClient(t *testing.T) {
	var bc *BotClient
	_, err := SendMessage(bc, 1, "x", "")
	assert.Error(t, err)
}
