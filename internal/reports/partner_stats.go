// Package reports формирует Excel-выгрузки.
package reports

import (
	"bytes"
	"fmt"
	"io"
	"log"

	"github.com/xuri/excelize/v2"

	"sarafan/internal/allocator"
	"sarafan/internal/models"
)

const partnerStatsSheet = "Партнеры"

var partnerStatsHeaders = []string{
	"ID", "Название", "Город", "Приведено клиентов", "Получено клиентов", "Отношение", "Полоса", "Приоритет",
}

// WritePartnerStats пишет книгу со статистикой партнеров, по строке на партнера.
func WritePartnerStats(w io.Writer, partners []models.Partner) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(partnerStatsSheet)
	if err != nil {
		return fmt.Errorf("ошибка создания листа: %w", err)
	}
	f.DeleteSheet("Sheet1") // Удаляем стандартный лист
	f.SetActiveSheet(index)

	for i, header := range partnerStatsHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(partnerStatsSheet, cell, header)
	}

	rowIndex := 2
	for _, p := range partners {
		f.SetCellValue(partnerStatsSheet, fmt.Sprintf("A%d", rowIndex), p.ID)
		f.SetCellValue(partnerStatsSheet, fmt.Sprintf("B%d", rowIndex), p.Name)
		f.SetCellValue(partnerStatsSheet, fmt.Sprintf("C%d", rowIndex), p.CityName)
		f.SetCellValue(partnerStatsSheet, fmt.Sprintf("D%d", rowIndex), p.ClientsBrought)
		f.SetCellValue(partnerStatsSheet, fmt.Sprintf("E%d", rowIndex), p.ClientsReceived)
		if ratio, ok := p.Ratio(); ok {
			f.SetCellValue(partnerStatsSheet, fmt.Sprintf("F%d", rowIndex), ratio)
		} else {
			f.SetCellValue(partnerStatsSheet, fmt.Sprintf("F%d", rowIndex), "∞")
		}
		f.SetCellValue(partnerStatsSheet, fmt.Sprintf("G%d", rowIndex), string(allocator.Classify(p)))
		priority := "нет"
		if p.Priority {
			priority = "да"
		}
		f.SetCellValue(partnerStatsSheet, fmt.Sprintf("H%d", rowIndex), priority)
		rowIndex++
	}

	if err := f.Write(w); err != nil {
		log.Printf("WritePartnerStats: Ошибка записи Excel файла: %v", err)
		return fmt.Errorf("ошибка записи Excel файла: %w", err)
	}
	return nil
}

// PartnerStatsBytes возвращает книгу статистики в памяти (для отправки в Telegram).
func PartnerStatsBytes(partners []models.Partner) ([]byte, error) {
	var buf bytes.Buffer
	if err := WritePartnerStats(&buf, partners); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
