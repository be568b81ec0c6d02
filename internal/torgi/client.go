package torgi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mishannn/torgiparser-go/internal/logger"
)

const (
	DefaultBaseURL      = "https://torgi.gov.ru/new/api/public"
	DefaultFileStoreURL = "https://torgi.gov.ru/new/file-store/v1"
	DefaultPublicURL    = "https://torgi.gov.ru/new/public"

	searchSort      = "firstVersionPublicationDate,desc"
	queryTimeLayout = "2006-01-02T15:04:05"
)

var (
	ErrBadStatus       = errors.New("server sent http error")
	ErrInvalidResponse = errors.New("invalid response format")
	ErrNoContent       = errors.New("no content in response")
)

type Options struct {
	BaseURL      string `yaml:"base_url"`
	FileStoreURL string `yaml:"file_store_url"`
	PublicURL    string `yaml:"public_url"`
	CategoryCode string `yaml:"category_code"`
	PageSize     int    `yaml:"page_size"`
}

func (o *Options) applyDefaults() {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.FileStoreURL == "" {
		o.FileStoreURL = DefaultFileStoreURL
	}
	if o.PublicURL == "" {
		o.PublicURL = DefaultPublicURL
	}
	if o.CategoryCode == "" {
		o.CategoryCode = "2"
	}
	if o.PageSize <= 0 {
		o.PageSize = 10
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	o.FileStoreURL = strings.TrimRight(o.FileStoreURL, "/")
	o.PublicURL = strings.TrimRight(o.PublicURL, "/")
}

// Client talks to the public torgi.gov.ru API: lot search pages and lot cards.
type Client struct {
	httpClient *http.Client
	opts       Options
	logger     *slog.Logger
}

func NewClient(httpClient *http.Client, opts Options, log *slog.Logger) *Client {
	opts.applyDefaults()
	if log == nil {
		log = logger.Discard()
	}

	return &Client{
		httpClient: httpClient,
		opts:       opts,
		logger:     log.With("component", "torgi"),
	}
}

func (c *Client) PageSize() int {
	return c.opts.PageSize
}

// Links builds public urls for lots and files.
func (c *Client) Links() Links {
	return Links{FileStoreURL: c.opts.FileStoreURL, PublicURL: c.opts.PublicURL}
}

func (c *Client) searchURL(filter Filter, page int) string {
	q := url.Values{}
	q.Set("dynSubjRF", strings.Join(filter.Subjects, ","))
	q.Set("lotStatus", strings.Join(filter.Statuses, ","))
	q.Set("catCode", c.opts.CategoryCode)
	q.Set("byFirstVersion", "true")
	q.Set("withFacets", "false")
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(c.opts.PageSize))
	q.Set("sort", searchSort)

	if filter.DateFrom != nil {
		from := startOfDay(*filter.DateFrom)
		q.Set("aucStartFrom", from.Format(queryTimeLayout))
	}
	if filter.DateTo != nil {
		to := startOfDay(*filter.DateTo).Add(24*time.Hour - time.Second)
		q.Set("aucStartTo", to.Format(queryTimeLayout))
	}

	return c.opts.BaseURL + "/lotcards/search?" + q.Encode()
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("can't create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("can't do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("can't read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d, %s", ErrBadStatus, resp.StatusCode, truncate(respBody, 200))
	}

	return respBody, nil
}

// FetchPage loads one zero-based search page. Failures never escape as errors:
// they are logged and reported through PageResult.Err with no items.
func (c *Client) FetchPage(ctx context.Context, filter Filter, page int) PageResult {
	targetURL := c.searchURL(filter, page)
	log := c.logger.With("page", page, "subjects", filter.Subjects, "statuses", filter.Statuses)

	log.Debug("sending search request", "url", targetURL)

	fail := func(msg string, err error) PageResult {
		log.Error(msg, logger.Err(err), "url", targetURL)
		return PageResult{Err: err}
	}

	respBody, err := c.get(ctx, targetURL)
	if err != nil {
		return fail("can't fetch search page", err)
	}

	var body searchResponseBody
	if err := json.Unmarshal(respBody, &body); err != nil {
		return fail("can't parse search page", fmt.Errorf("%w: %w", ErrInvalidResponse, err))
	}

	if body.Content == nil {
		return fail("search page has no content", ErrNoContent)
	}

	items := make([]Lot, 0, len(*body.Content))
	for i, raw := range *body.Content {
		var lot Lot
		if err := json.Unmarshal(raw, &lot); err != nil {
			log.Warn("can't parse lot, skipping", "index", i, logger.Err(err))
			continue
		}
		items = append(items, lot)
	}

	log.Info("search page received", "items", len(items), "total_pages", int(body.TotalPages), "total_elements", int(body.TotalElements))

	return PageResult{
		Items:         items,
		TotalPages:    int(body.TotalPages),
		TotalElements: int(body.TotalElements),
	}
}

// GetLotDetail loads the lot card. On failure it returns the zero LotDetail and the cause.
func (c *Client) GetLotDetail(ctx context.Context, lotID string) (LotDetail, error) {
	targetURL := c.opts.BaseURL + "/lotcards/" + url.PathEscape(lotID)

	respBody, err := c.get(ctx, targetURL)
	if err != nil {
		c.logger.Error("can't fetch lot card", "lot_id", lotID, logger.Err(err))
		return LotDetail{}, err
	}

	var body lotCardResponseBody
	if err := json.Unmarshal(respBody, &body); err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidResponse, err)
		c.logger.Error("can't parse lot card", "lot_id", lotID, logger.Err(err))
		return LotDetail{}, err
	}

	return c.lotDetailFromBody(body), nil
}

func (c *Client) lotDetailFromBody(body lotCardResponseBody) LotDetail {
	detail := LotDetail{
		AuctionStartDate: body.AuctionStartDate,
		BiddStartTime:    body.BiddStartTime,
		AuctionLink:      body.EtpURL,
		PriceMin:         body.PriceMin.Float(),
		PriceFin:         body.PriceFin.Float(),
		PriceStep:        body.PriceStep.Float(),
		Deposit:          body.Deposit.Float(),
		PermittedUse:     PermittedUse(body.Characteristics),
	}

	links := c.Links()
	for _, attachment := range body.LotAttachments {
		if attachment.FileID == "" {
			continue
		}
		detail.Files = append(detail.Files, File{
			Name: attachment.FileName,
			URL:  links.FileURL(attachment.FileID),
		})
	}

	return detail
}

// PermittedUse joins the value names of the PermittedUse characteristic.
func PermittedUse(characteristics []Characteristic) string {
	parts := make([]string, 0)
	for _, ch := range characteristics {
		if ch.Code != "PermittedUse" {
			continue
		}
		if text := RawText(ch.Value); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, ", ")
}

// TotalPages is the page count for totalElements items at pageSize items per page.
func TotalPages(totalElements, pageSize int) int {
	if totalElements <= 0 || pageSize <= 0 {
		return 0
	}
	return int(math.Ceil(float64(totalElements) / float64(pageSize)))
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

type Links struct {
	FileStoreURL string
	PublicURL    string
}

func (l Links) FileURL(fileID string) string {
	return l.FileStoreURL + "/" + fileID
}

func (l Links) ImageURL(fileID string) string {
	return l.FileStoreURL + "/" + fileID + "?disposition=inline"
}

func (l Links) LotURL(lotID string) string {
	return l.PublicURL + "/lots/lot/" + lotID
}
