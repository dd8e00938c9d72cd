package crm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sarafan/internal/models"
)

func TestLogClientAcceptsEverything(t *testing.T) {
	var c Client = LogClient{}
	s := models.ClientSession{ChatID: "79001112233", ClientName: "Анна", InitialPartnerID: "м1"}
	id, err := c.UpsertContact(context.Background(), s)
	require.NoError(t, err)
	assert.Zero(t, id)
	assert.NoError(t, c.UpsertLead(context.Background(), s, id))
}
