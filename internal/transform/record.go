// Package transform flattens torgi lots and their enrichment results into export rows.
package transform

import (
	"strings"
	"time"

	"github.com/mishannn/torgiparser-go/internal/nspd"
	"github.com/mishannn/torgiparser-go/internal/torgi"
)

const (
	areaCode       = "SquareZU"
	rentPeriodCode = "DA_contractDate_EA(ZK)"
)

// Record is one lot in the export schema. Times are zone-naive wall clock values
// stored as UTC; nil pointers are absent values.
type Record struct {
	ID             string
	LotName        string
	LotDescription string
	Category       string
	BiddType       string
	BiddForm       string
	LotStatus      string
	SubjectRFCode  string
	Subject        string

	CadastralNumber string
	Area            string
	RentPeriod      string

	Link   string
	Images []string

	CreateDate  *time.Time
	BiddEndTime *time.Time

	PriceMin  *float64
	PriceFin  *float64
	PriceStep *float64
	Deposit   *float64

	AuctionStartDate *time.Time
	BiddStartTime    *time.Time
	AuctionLink      string
	PermittedUse     string
	Files            []torgi.File

	Lon     *float64
	Lat     *float64
	Address string

	// TimezoneOffset is the lot offset in minutes, applied to every timestamp.
	TimezoneOffset int
}

// Basic builds the record from listing fields only.
func Basic(lot torgi.Lot, links torgi.Links, subject string) Record {
	offset := int(lot.TimezoneOffset)
	id := string(lot.ID)

	record := Record{
		ID:              id,
		LotName:         lot.LotName,
		LotDescription:  lot.LotDescription,
		Category:        lot.Category.String(),
		BiddType:        lot.BiddType.String(),
		BiddForm:        lot.BiddForm.String(),
		LotStatus:       lot.LotStatus.String(),
		SubjectRFCode:   string(lot.SubjectRFCode),
		Subject:         subject,
		CadastralNumber: ExtractCadastralNumber(lot.Characteristics, lot.LotDescription),
		Area:            characteristicText(lot.Characteristics, areaCode),
		RentPeriod:      attributeText(lot.Attributes, rentPeriodCode),
		Link:            links.LotURL(id),
		CreateDate:      ShiftTime(lot.CreateDate, offset),
		BiddEndTime:     ShiftTime(lot.BiddEndTime, offset),
		PriceMin:        lot.PriceMin.Float(),
		PriceFin:        lot.PriceFin.Float(),
		Deposit:         lot.Deposit.Float(),
		TimezoneOffset:  offset,
	}

	for _, fileID := range lot.LotImages {
		if fileID = strings.TrimSpace(fileID); fileID != "" {
			record.Images = append(record.Images, links.ImageURL(fileID))
		}
	}

	return record
}

// ApplyGeo sets coordinates and address. A nil result leaves the record without them.
func ApplyGeo(record *Record, geo *nspd.GeoResult) {
	if geo == nil {
		return
	}

	lon, lat := geo.Centroid.Lon(), geo.Centroid.Lat()
	record.Lon = &lon
	record.Lat = &lat
	record.Address = geo.Address
}

// ApplyDetail merges lot card fields. Prices from the card replace listing prices
// only when present.
func ApplyDetail(record *Record, detail torgi.LotDetail) {
	record.AuctionStartDate = ShiftTime(detail.AuctionStartDate, record.TimezoneOffset)
	record.BiddStartTime = ShiftTime(detail.BiddStartTime, record.TimezoneOffset)
	record.AuctionLink = detail.AuctionLink
	record.PermittedUse = detail.PermittedUse
	record.Files = detail.Files

	if detail.PriceMin != nil {
		record.PriceMin = detail.PriceMin
	}
	if detail.PriceFin != nil {
		record.PriceFin = detail.PriceFin
	}
	if detail.PriceStep != nil {
		record.PriceStep = detail.PriceStep
	}
	if detail.Deposit != nil {
		record.Deposit = detail.Deposit
	}
}

func characteristicText(characteristics []torgi.Characteristic, code string) string {
	for _, ch := range characteristics {
		if ch.Code == code {
			return strings.TrimSpace(torgi.RawText(ch.Value))
		}
	}
	return ""
}

func attributeText(attributes []torgi.Attribute, code string) string {
	for _, attr := range attributes {
		if attr.Code == code {
			return strings.TrimSpace(torgi.RawText(attr.Value))
		}
	}
	return ""
}
