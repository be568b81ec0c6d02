package export

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"google.golang.org/api/option"
)

func TestXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.xlsx")
	header := []string{"Наименование", "Описание", "Документы"}
	rows := [][]string{
		{"Участок", strings.Repeat("о", 80), "a.pdf: u1\nb.pdf: u2"},
		{"Участок 2", "", ""},
	}

	require.NoError(t, XLSX(path, header, rows))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, header, got[0])
	assert.Equal(t, "a.pdf: u1\nb.pdf: u2", got[1][2])
	assert.Equal(t, "Участок 2", got[2][0])

	width, err := f.GetColWidth(SheetName, "B")
	require.NoError(t, err)
	assert.Equal(t, 52.0, width)

	width, err = f.GetColWidth(SheetName, "A")
	require.NoError(t, err)
	assert.Equal(t, 15.0, width)
}

func TestXLSXWithoutRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, XLSX(path, []string{"Наименование"}, nil))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Наименование"}}, got)
}

func TestColumnWidths(t *testing.T) {
	widths := ColumnWidths(3, [][]string{
		{"short", strings.Repeat("x", 20), "ы"},
		{"", strings.Repeat("x", 30)},
	})
	assert.Equal(t, []float64{15, 32, 15}, widths)
}

func TestFileName(t *testing.T) {
	now := time.Date(2024, 6, 1, 13, 5, 9, 0, time.UTC)

	assert.Equal(t,
		"TORGI_Московская_область_PUBLISHED_20240601_130509.xlsx",
		FileName([]string{"Московская область"}, []string{"PUBLISHED"}, now))

	assert.Equal(t,
		"TORGI_Город_Москва-Московская_область_PUBLISHED-APPLICATIONS_SUBMISSION_20240601_130509.xlsx",
		FileName([]string{"Город Москва", "Московская область"}, []string{"PUBLISHED", "APPLICATIONS_SUBMISSION"}, now))

	assert.Equal(t,
		"TORGI_3_субъектов_3_статусов_20240601_130509.xlsx",
		FileName([]string{"a", "b", "c"}, []string{"x", "y", "z"}, now))
}

func TestSheetsWriterAppend(t *testing.T) {
	var gotPath, gotOption string
	var gotValues [][]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotOption = r.URL.Query().Get("valueInputOption")

		var body struct {
			Values [][]any `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotValues = body.Values

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId": "sheet-id"}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	writer, err := newSheetsWriter(ctx, "sheet-id", "Stats!A1", option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)

	require.NoError(t, writer.Append(ctx, nil))
	assert.Empty(t, gotPath)

	err = writer.Append(ctx, [][]any{{"2024-06-01 13:05:09", "Московская область", 1250.5}})
	require.NoError(t, err)

	assert.Contains(t, gotPath, "/spreadsheets/sheet-id/values/")
	assert.True(t, strings.HasSuffix(gotPath, ":append"), gotPath)
	assert.Equal(t, "USER_ENTERED", gotOption)
	require.Len(t, gotValues, 1)
	assert.Equal(t, "Московская область", gotValues[0][1])
	assert.Equal(t, 1250.5, gotValues[0][2])
}
