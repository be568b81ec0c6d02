package torgi

import "encoding/json"

type Characteristic struct {
	Code  string          `json:"code"`
	Name  string          `json:"name"`
	Value json.RawMessage `json:"characteristicValue"`
}

type Attribute struct {
	Code     string          `json:"code"`
	FullName string          `json:"fullName"`
	Value    json.RawMessage `json:"value"`
}

// Lot has only the listing fields used downstream
type Lot struct {
	ID              FlexString       `json:"id"`
	NoticeNumber    string           `json:"noticeNumber"`
	LotName         string           `json:"lotName"`
	LotDescription  string           `json:"lotDescription"`
	Category        NamedValue       `json:"category"`
	BiddType        NamedValue       `json:"biddType"`
	BiddForm        NamedValue       `json:"biddForm"`
	LotStatus       NamedValue       `json:"lotStatus"`
	SubjectRFCode   FlexString       `json:"subjectRFCode"`
	PriceMin        *FlexFloat       `json:"priceMin"`
	PriceFin        *FlexFloat       `json:"priceFin"`
	Deposit         *FlexFloat       `json:"deposit"`
	LotImages       []string         `json:"lotImages"`
	Characteristics []Characteristic `json:"characteristics"`
	Attributes      []Attribute      `json:"attributes"`
	CreateDate      string           `json:"createDate"`
	BiddEndTime     string           `json:"biddEndTime"`
	TimezoneOffset  FlexInt          `json:"timezoneOffset"`
}

type searchResponseBody struct {
	Content       *[]json.RawMessage `json:"content"`
	TotalPages    FlexInt            `json:"totalPages"`
	TotalElements FlexInt            `json:"totalElements"`
}

// PageResult is one normalized page of the search endpoint.
// Err is set when the page could not be fetched; Items is empty in that case.
type PageResult struct {
	Items         []Lot
	TotalPages    int
	TotalElements int
	Err           error
}

type lotAttachment struct {
	FileName string `json:"fileName"`
	FileID   string `json:"fileId"`
}

type lotCardResponseBody struct {
	AuctionStartDate string           `json:"auctionStartDate"`
	BiddStartTime    string           `json:"biddStartTime"`
	EtpURL           string           `json:"etpUrl"`
	PriceMin         *FlexFloat       `json:"priceMin"`
	PriceFin         *FlexFloat       `json:"priceFin"`
	PriceStep        *FlexFloat       `json:"priceStep"`
	Deposit          *FlexFloat       `json:"deposit"`
	Characteristics  []Characteristic `json:"characteristics"`
	LotAttachments   []lotAttachment  `json:"lotAttachments"`
}

type File struct {
	Name string
	URL  string
}

// LotDetail holds the lot card fields missing from the search listing.
// The zero value means the card could not be loaded.
type LotDetail struct {
	AuctionStartDate string
	BiddStartTime    string
	AuctionLink      string
	PriceMin         *float64
	PriceFin         *float64
	PriceStep        *float64
	Deposit          *float64
	PermittedUse     string
	Files            []File
}
