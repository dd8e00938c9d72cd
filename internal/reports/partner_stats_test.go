package reports

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"sarafan/internal/models"
)

func TestWritePartnerStats(t *testing.T) {
	partners := []models.Partner{
		{ID: "м1", Name: "Лак", CityName: "Москва", ClientsBrought: 4, ClientsReceived: 10, Priority: true},
		{ID: "м2", Name: "Бровист", CityName: "Москва"},
	}
	data, err := PartnerStatsBytes(partners)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(partnerStatsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, partnerStatsHeaders, rows[0])
	assert.Equal(t, []string{"м1", "Лак", "Москва", "4", "10", "0.4", "high", "да"}, rows[1])
	assert.Equal(t, "∞", rows[2][5])
	assert.Equal(t, "low", rows[2][6])
	assert.Equal(t, "нет", rows[2][7])
}
