package transform

import (
	"strconv"
	"strings"
	"time"
)

const DateLayout = "02.01.2006 15:04"

type Column struct {
	Key   string
	Title string
}

var (
	leadingColumns = []Column{
		{Key: "lotName", Title: "Наименование"},
		{Key: "lotDescription", Title: "Описание"},
		{Key: "category", Title: "Категория"},
		{Key: "biddType", Title: "Тип торгов"},
		{Key: "biddForm", Title: "Форма торгов"},
		{Key: "subject", Title: "Субъект РФ"},
	}
	geoColumns = []Column{
		{Key: "latitude", Title: "Широта"},
		{Key: "longitude", Title: "Долгота"},
		{Key: "address", Title: "Адрес"},
	}
	trailingColumns = []Column{
		{Key: "cadastral_number", Title: "Кадастровый номер"},
		{Key: "area", Title: "Площадь (кв.м)"},
		{Key: "permitted_use", Title: "Вид разрешенного использования"},
		{Key: "priceMin", Title: "Начальная цена (руб)"},
		{Key: "deposit", Title: "Задаток (руб)"},
		{Key: "priceStep", Title: "Шаг аукциона (руб)"},
		{Key: "rent_period", Title: "Срок аренды"},
		{Key: "biddEndTime", Title: "Дата окончания приема заявок"},
		{Key: "auction_start_date", Title: "Дата проведения аукциона"},
		{Key: "lotStatus", Title: "Статус"},
		{Key: "link", Title: "Ссылка на лот"},
		{Key: "auction_link", Title: "Ссылка на аукцион"},
		{Key: "lotImages", Title: "Изображения"},
		{Key: "files", Title: "Документы"},
	}
)

// Columns is the ordered export schema. Coordinate and address columns are
// present only when coordinates were requested.
func Columns(withCoordinates bool) []Column {
	columns := make([]Column, 0, len(leadingColumns)+len(geoColumns)+len(trailingColumns))
	columns = append(columns, leadingColumns...)
	if withCoordinates {
		columns = append(columns, geoColumns...)
	}
	return append(columns, trailingColumns...)
}

func Titles(columns []Column) []string {
	titles := make([]string, len(columns))
	for i, column := range columns {
		titles[i] = column.Title
	}
	return titles
}

// Row renders record as display strings in the order of columns.
func Row(record Record, columns []Column) []string {
	row := make([]string, len(columns))
	for i, column := range columns {
		row[i] = record.Value(column.Key)
	}
	return row
}

// Value renders one field of the record by column key. Unknown keys give "".
func (r Record) Value(key string) string {
	switch key {
	case "lotName":
		return r.LotName
	case "lotDescription":
		return r.LotDescription
	case "category":
		return r.Category
	case "biddType":
		return r.BiddType
	case "biddForm":
		return r.BiddForm
	case "subject":
		return r.Subject
	case "latitude":
		return formatCoordinate(r.Lat)
	case "longitude":
		return formatCoordinate(r.Lon)
	case "address":
		return r.Address
	case "cadastral_number":
		return r.CadastralNumber
	case "area":
		return r.Area
	case "permitted_use":
		return r.PermittedUse
	case "priceMin":
		return FormatMoney(r.PriceMin)
	case "deposit":
		return FormatMoney(r.Deposit)
	case "priceStep":
		return FormatMoney(r.PriceStep)
	case "rent_period":
		return r.RentPeriod
	case "biddEndTime":
		return formatDate(r.BiddEndTime)
	case "auction_start_date":
		return formatDate(r.AuctionStartDate)
	case "lotStatus":
		return r.LotStatus
	case "link":
		return r.Link
	case "auction_link":
		return r.AuctionLink
	case "lotImages":
		return strings.Join(r.Images, ", ")
	case "files":
		lines := make([]string, 0, len(r.Files))
		for _, file := range r.Files {
			lines = append(lines, file.Name+": "+file.URL)
		}
		return strings.Join(lines, "\n")
	default:
		return ""
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}

func formatCoordinate(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 6, 64)
}

// FormatMoney renders v with two decimals and spaces between thousands: 1 234 567.89.
func FormatMoney(v *float64) string {
	if v == nil {
		return ""
	}

	text := strconv.FormatFloat(*v, 'f', 2, 64)
	sign := ""
	if strings.HasPrefix(text, "-") {
		sign, text = "-", text[1:]
	}

	intPart, fracPart, _ := strings.Cut(text, ".")

	var b strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(digit)
	}

	return sign + b.String() + "." + fracPart
}

// ParseNumber reads a human formatted number such as "1 500,5". ok is false for non-numeric text.
func ParseNumber(text string) (float64, bool) {
	text = strings.ReplaceAll(text, " ", "")
	text = strings.ReplaceAll(text, "\u00a0", "")
	text = strings.ReplaceAll(text, ",", ".")
	if text == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
