package importer

import (
	"context"
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Source отдает строки таблицы партнеров без заголовка.
type Source interface {
	Rows(ctx context.Context) ([][]string, error)
}

// XLSXSource читает первый лист локального файла .xlsx.
type XLSXSource struct {
	Path string
	// SkipHeader пропускает первую строку листа.
	SkipHeader bool
}

func (s XLSXSource) Rows(ctx context.Context) ([][]string, error) {
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия файла '%s': %w", s.Path, err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("в файле '%s' нет листов", s.Path)
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения листа '%s': %w", sheetName, err)
	}
	if s.SkipHeader && len(rows) > 0 {
		rows = rows[1:]
	}
	return rows, ctx.Err()
}

// SheetsSource читает диапазон Google-таблицы.
type SheetsSource struct {
	service       *sheets.Service
	spreadsheetID string
	readRange     string
}

// NewSheetsSource создает источник с авторизацией через сервисный аккаунт.
func NewSheetsSource(ctx context.Context, serviceAccountFile, spreadsheetID, readRange string) (*SheetsSource, error) {
	jsonKey, err := os.ReadFile(serviceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать файл сервисного аккаунта: %w", err)
	}
	jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("не удалось разобрать ключ сервисного аккаунта: %w", err)
	}
	httpClient := oauth2.NewClient(ctx, jwtConfig.TokenSource(ctx))
	return NewSheetsSourceWithOptions(ctx, spreadsheetID, readRange, option.WithHTTPClient(httpClient))
}

// NewSheetsSourceWithOptions создает источник с произвольными опциями клиента API.
func NewSheetsSourceWithOptions(ctx context.Context, spreadsheetID, readRange string, opts ...option.ClientOption) (*SheetsSource, error) {
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать клиент Google Sheets: %w", err)
	}
	return &SheetsSource{service: srv, spreadsheetID: spreadsheetID, readRange: readRange}, nil
}

func (s *SheetsSource) Rows(ctx context.Context) ([][]string, error) {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("ошибка при загрузке данных из Google Sheets: %w", err)
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = fmt.Sprint(cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
