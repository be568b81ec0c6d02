package export

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsWriter appends rows to a range of a Google spreadsheet.
type SheetsWriter struct {
	srv           *sheets.Service
	spreadsheetID string
	dataRange     string
}

// NewSheetsWriter authorizes with a service account credentials file.
func NewSheetsWriter(ctx context.Context, credentialsFilePath, spreadsheetID, dataRange string) (*SheetsWriter, error) {
	b, err := os.ReadFile(credentialsFilePath)
	if err != nil {
		return nil, fmt.Errorf("can't read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(b, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("can't read JWT config from json: %w", err)
	}

	return newSheetsWriter(ctx, spreadsheetID, dataRange, option.WithHTTPClient(config.Client(ctx)))
}

func newSheetsWriter(ctx context.Context, spreadsheetID, dataRange string, opts ...option.ClientOption) (*SheetsWriter, error) {
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("can't create sheets service: %w", err)
	}

	return &SheetsWriter{srv: srv, spreadsheetID: spreadsheetID, dataRange: dataRange}, nil
}

func (w *SheetsWriter) Append(ctx context.Context, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	vr := sheets.ValueRange{Values: rows}

	_, err := w.srv.Spreadsheets.Values.Append(w.spreadsheetID, w.dataRange, &vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("can't write data to sheet: %w", err)
	}

	return nil
}
