package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ClickHouse/clickhouse-go/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"

	"github.com/mishannn/torgiparser-go/internal/export"
	"github.com/mishannn/torgiparser-go/internal/httpclient"
	"github.com/mishannn/torgiparser-go/internal/logger"
	"github.com/mishannn/torgiparser-go/internal/nspd"
	"github.com/mishannn/torgiparser-go/internal/pipeline"
	"github.com/mishannn/torgiparser-go/internal/progress"
	"github.com/mishannn/torgiparser-go/internal/refdata"
	"github.com/mishannn/torgiparser-go/internal/torgi"
)

func main() {
	var configFilePath string
	flag.StringVar(&configFilePath, "c", "config.yaml", "config file path")

	var envFilePath string
	flag.StringVar(&envFilePath, "e", ".env", "env file path")

	var once bool
	flag.BoolVar(&once, "once", false, "run the filter from the once section and exit")

	flag.Parse()

	cfg, err := newConfig(configFilePath, envFilePath)
	if err != nil {
		log.Fatalf("can't read config: %s", err)
	}

	l := logger.New(cfg.Log, os.Stdout)
	slog.SetDefault(l)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := refdata.Load(cfg.Refdata.Dir)
	if err != nil {
		log.Fatalf("can't load reference data: %s", err)
	}

	a, closeApp, err := newApp(ctx, cfg, catalog, l)
	if err != nil {
		log.Fatalf("can't create app: %s", err)
	}
	defer closeApp()

	if once {
		if err := runOnce(ctx, cfg, a, l); err != nil {
			l.Error("one-shot run failed", logger.Err(err))
			os.Exit(1)
		}
		return
	}

	if err := runBot(ctx, cfg, a, catalog, l); err != nil {
		l.Error("bot stopped with error", logger.Err(err))
		os.Exit(1)
	}
}

func newApp(ctx context.Context, cfg *Config, catalog *refdata.Catalog, l *slog.Logger) (*app, func(), error) {
	publicURL := cfg.Torgi.PublicURL
	if publicURL == "" {
		publicURL = torgi.DefaultPublicURL
	}

	torgiHTTP, err := httpclient.New(httpclient.Options{
		Timeout: cfg.Torgi.Timeout,
		Header:  httpclient.BrowserHeaders(publicURL + "/"),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("can't create torgi http client: %w", err)
	}

	nspdHTTP, err := httpclient.New(httpclient.Options{
		Timeout:            cfg.NSPD.Timeout,
		Header:             httpclient.BrowserHeaders(cfg.NSPD.BaseURL + "/"),
		InsecureSkipVerify: cfg.NSPD.InsecureSkipVerify,
		MaxConnsPerHost:    cfg.Enrichment.Geocoding.MaxInFlight,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("can't create nspd http client: %w", err)
	}

	client := torgi.NewClient(torgiHTTP, cfg.Torgi.Options, l)
	geocoder := nspd.NewGeocoder(nspdHTTP, cfg.NSPD.BaseURL, l)
	p := pipeline.New(client, geocoder, catalog, cfg.Enrichment, l)

	statistic := &statisticSaver{logger: l.With("component", "statistic")}

	var db *sql.DB
	if cfg.Database.Address != "" {
		db = clickhouse.OpenDB(&clickhouse.Options{
			Addr: []string{cfg.Database.Address},
			Auth: clickhouse.Auth{
				Database: cfg.Database.Database,
				Username: cfg.Database.Username,
				Password: cfg.Database.Password,
			},
		})

		if err := upMigrations(db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("can't up migrations: %w", err)
		}
		statistic.db = db
	}

	if cfg.Sheets.SpreadsheetID != "" {
		sheets, err := export.NewSheetsWriter(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID, cfg.Sheets.Range)
		if err != nil {
			if db != nil {
				db.Close()
			}
			return nil, nil, fmt.Errorf("can't create sheets writer: %w", err)
		}
		statistic.sheets = sheets
	}

	closeFn := func() {
		if db != nil {
			if err := db.Close(); err != nil {
				l.Warn("can't close database", logger.Err(err))
			}
		}
	}

	return &app{
		pipeline:  p,
		catalog:   catalog,
		statistic: statistic,
		exportDir: cfg.Export.Dir,
		logger:    l.With("component", "app"),
	}, closeFn, nil
}

func runOnce(ctx context.Context, cfg *Config, a runner, l *slog.Logger) error {
	filter, err := cfg.onceFilter()
	if err != nil {
		return fmt.Errorf("can't build filter: %w", err)
	}

	onProgress := func(done, total int) {
		l.Info("pages fetched", "done", done, "total", total)
	}
	onStage := func(stage pipeline.Stage, done, total int) {
		l.Info("enrichment progress", "stage", stage, "done", done, "total", total)
	}

	outcome, err := a.run(ctx, filter, onProgress, onStage)
	if err != nil {
		return err
	}

	if outcome.NoData {
		l.Info("no lots found for the filter")
		return nil
	}

	l.Info("data saved", "path", outcome.Path, "records", outcome.Records)
	return nil
}

func runBot(ctx context.Context, cfg *Config, a runner, catalog *refdata.Catalog, l *slog.Logger) error {
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is not set")
	}

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("can't create bot api: %w", err)
	}
	api.Debug = cfg.Telegram.Debug

	if _, err := api.Request(tgbotapi.NewSetMyCommands(botCommands()...)); err != nil {
		l.Warn("can't set bot commands", logger.Err(err))
	}

	var store progress.Store = progress.NewMemoryStore(cfg.Redis.Progress)
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("can't connect to redis: %w", err)
		}
		store = progress.NewRedisStore(client, cfg.Redis.Progress)
	}

	l.Info("bot started", "username", api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	bot := newBot(api, a, catalog, store, l)
	go func() {
		<-ctx.Done()
		api.StopReceivingUpdates()
	}()
	bot.serve(ctx, updates)

	l.Info("bot stopped")
	return nil
}
