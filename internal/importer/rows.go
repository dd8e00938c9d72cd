// Package importer обновляет каталог партнеров из таблицы.
package importer

import (
	"database/sql"
	"strings"

	"sarafan/internal/constants"
	"sarafan/internal/models"
)

// PartnerRow - разобранная строка таблицы партнеров.
type PartnerRow struct {
	Categories         []string
	Name               string
	Discount           string
	City               string
	Contacts           string
	PartnerID          string
	Priority           bool
	LinkedPartnerID    sql.NullString
	MessagePartnerName string
	PartnerType        string
}

// ParseRow разбирает строку таблицы. Колонки:
// категории, название, скидка, город, контакты, ID, приоритет, связанный ID, название для сообщений, тип.
// ok == false, если число колонок не совпадает.
func ParseRow(cells []string) (row PartnerRow, ok bool) {
	if len(cells) != constants.IMPORT_COLUMNS {
		return PartnerRow{}, false
	}
	cells = append([]string(nil), cells...)
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}

	for _, c := range strings.Split(cells[0], constants.CATEGORY_SEPARATOR) {
		if c = strings.TrimSpace(c); c != "" {
			row.Categories = append(row.Categories, c)
		}
	}
	row.Name = cells[1]
	row.Discount = cells[2]
	row.City = cells[3]
	row.Contacts = cells[4]
	row.PartnerID = strings.ToLower(cells[5])
	row.Priority = strings.ToLower(cells[6]) == constants.TOKEN_YES
	if linked := strings.ToLower(cells[7]); linked != "" && linked != constants.TOKEN_NO {
		row.LinkedPartnerID = sql.NullString{String: linked, Valid: true}
	}
	row.MessagePartnerName = cells[8]
	row.PartnerType = strings.ToLower(cells[9])
	if row.PartnerType == "" {
		row.PartnerType = models.PartnerTypeSalon
	}
	return row, true
}
