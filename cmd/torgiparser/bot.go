package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mishannn/torgiparser-go/internal/logger"
	"github.com/mishannn/torgiparser-go/internal/pipeline"
	"github.com/mishannn/torgiparser-go/internal/progress"
	"github.com/mishannn/torgiparser-go/internal/refdata"
	"github.com/mishannn/torgiparser-go/internal/torgi"
)

const (
	textGreeting      = "👋 Привет! Я помогу вам получить данные с torgi.gov.ru\nДля начала работы перейдите в настройки и выберите параметры поиска."
	textMainMenu      = "Главное меню"
	textSelectSubject = "Выберите субъекты РФ:"
	textSelectStatus  = "Выберите статусы:"
	textStarted       = "⏳ Бот начал работать, ожидайте...\nЭто может занять некоторое время в зависимости от количества выбранных параметров."
	textAlreadyActive = "⚠️ У вас уже есть активный запрос. Дождитесь его завершения или отмените."
	textEmptyFilter   = "❌ Необходимо выбрать хотя бы один субъект и один статус!"
	textNoData        = "❌ Не найдено данных по выбранным параметрам"
	textFetchError    = "❌ Произошла ошибка при загрузке данных. Попробуйте позже."
	textSendError     = "❌ Произошла ошибка при обработке данных. Попробуйте позже."
	textCancelled     = "❌ Запрос отменен."
	textNothingCancel = "❓ Нет активных запросов для отмены."
	textNoActiveRun   = "💤 Нет активных запросов."
	textDatesUsage    = "Укажите период проведения торгов: /dates 2024-06-01 2024-06-30\nБез аргументов период сбрасывается."
	textUnknown       = "Используйте /settings для настройки поиска."
)

// telegramAPI is the part of *tgbotapi.BotAPI the bot uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type chatSession struct {
	Subjects           []string
	Statuses           []string
	Page               int
	DateFrom           *time.Time
	DateTo             *time.Time
	ComputeCoordinates bool
}

func (s chatSession) clone() chatSession {
	s.Subjects = slices.Clone(s.Subjects)
	s.Statuses = slices.Clone(s.Statuses)
	return s
}

type activeRun struct {
	cancel context.CancelFunc
}

// Bot is the Telegram front-end: per-chat filter settings and at most one run per chat.
type Bot struct {
	api      telegramAPI
	runner   runner
	catalog  *refdata.Catalog
	progress progress.Store
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[int64]*chatSession
	runs     map[int64]*activeRun
	wg       sync.WaitGroup
}

func newBot(api telegramAPI, runner runner, catalog *refdata.Catalog, store progress.Store, log *slog.Logger) *Bot {
	return &Bot{
		api:      api,
		runner:   runner,
		catalog:  catalog,
		progress: store,
		logger:   log.With("component", "bot"),
		sessions: map[int64]*chatSession{},
		runs:     map[int64]*activeRun{},
	}
}

// serve handles updates until ctx is done or the channel is closed, then waits for active runs.
func (b *Bot) serve(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	defer b.wait()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) wait() {
	b.wg.Wait()
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if !msg.IsCommand() {
		b.send(chatID, textUnknown, nil)
		return
	}

	switch msg.Command() {
	case "start":
		b.resetSession(chatID)
		b.send(chatID, textGreeting, mainMenuKeyboard())
	case "settings":
		session := b.session(chatID)
		b.send(chatID, settingsText(session), settingsKeyboard(session.ComputeCoordinates))
	case "dates":
		b.handleDates(chatID, msg.CommandArguments())
	case "status":
		b.handleStatus(ctx, chatID)
	default:
		b.send(chatID, textUnknown, nil)
	}
}

func (b *Bot) handleDates(chatID int64, args string) {
	fields := strings.Fields(args)

	var dateFrom, dateTo *time.Time
	switch len(fields) {
	case 0:
	case 2:
		var err error
		if dateFrom, err = parseDate(fields[0]); err != nil {
			b.send(chatID, textDatesUsage, nil)
			return
		}
		if dateTo, err = parseDate(fields[1]); err != nil {
			b.send(chatID, textDatesUsage, nil)
			return
		}
		if dateFrom.After(*dateTo) {
			b.send(chatID, "❌ Дата начала периода позже даты окончания.", nil)
			return
		}
	default:
		b.send(chatID, textDatesUsage, nil)
		return
	}

	session := b.updateSession(chatID, func(s *chatSession) {
		s.DateFrom, s.DateTo = dateFrom, dateTo
	})
	b.send(chatID, settingsText(session), settingsKeyboard(session.ComputeCoordinates))
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	p, err := b.progress.Get(ctx, chatID)
	if err != nil {
		b.logger.Warn("can't get progress", "chat_id", chatID, logger.Err(err))
		b.send(chatID, textFetchError, nil)
		return
	}

	if p == nil {
		b.mu.Lock()
		_, active := b.runs[chatID]
		b.mu.Unlock()

		if active {
			b.send(chatID, textStarted, cancelKeyboard())
			return
		}
		b.send(chatID, textNoActiveRun, nil)
		return
	}

	b.send(chatID, fmt.Sprintf("⏳ Выполнено: %d/%d (%.1f%%)\nОбновлено: %s",
		p.Current, p.Total, p.Percentage, p.UpdatedAt.Local().Format("15:04:05")), cancelKeyboard())
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat == nil {
		b.answer(cb.ID, "")
		return
	}

	chatID, messageID := cb.Message.Chat.ID, cb.Message.MessageID
	data := cb.Data
	answer := ""

	switch {
	case data == cbSettings, data == cbDoneSubjects, data == cbDoneStatuses:
		session := b.session(chatID)
		b.edit(chatID, messageID, settingsText(session), settingsKeyboard(session.ComputeCoordinates))
	case data == cbSelectSubject:
		session := b.session(chatID)
		b.edit(chatID, messageID, textSelectSubject, subjectsKeyboard(b.catalog.Subjects, session.Page, session.Subjects))
	case data == cbSelectStatus:
		session := b.session(chatID)
		b.edit(chatID, messageID, textSelectStatus, statusKeyboard(b.catalog.Statuses, session.Statuses))
	case strings.HasPrefix(data, cbSubjectPrefix):
		code := strings.TrimPrefix(data, cbSubjectPrefix)
		var added bool
		session := b.updateSession(chatID, func(s *chatSession) {
			s.Subjects, added = toggle(s.Subjects, code)
		})
		answer = "✅ Субъект убран"
		if added {
			answer = "✅ Субъект добавлен"
		}
		b.edit(chatID, messageID, textSelectSubject, subjectsKeyboard(b.catalog.Subjects, session.Page, session.Subjects))
	case strings.HasPrefix(data, cbStatusPrefix):
		code := strings.TrimPrefix(data, cbStatusPrefix)
		var added bool
		session := b.updateSession(chatID, func(s *chatSession) {
			s.Statuses, added = toggle(s.Statuses, code)
		})
		answer = "✅ Статус убран"
		if added {
			answer = "✅ Статус добавлен"
		}
		b.edit(chatID, messageID, textSelectStatus, statusKeyboard(b.catalog.Statuses, session.Statuses))
	case data == cbPrevPage, data == cbNextPage:
		session := b.updateSession(chatID, func(s *chatSession) {
			if data == cbPrevPage {
				s.Page = max(0, s.Page-1)
			} else {
				s.Page = min(maxSubjectsPage(b.catalog.Subjects), s.Page+1)
			}
		})
		b.edit(chatID, messageID, textSelectSubject, subjectsKeyboard(b.catalog.Subjects, session.Page, session.Subjects))
	case data == cbToggleCoords:
		session := b.updateSession(chatID, func(s *chatSession) {
			s.ComputeCoordinates = !s.ComputeCoordinates
		})
		b.edit(chatID, messageID, settingsText(session), settingsKeyboard(session.ComputeCoordinates))
	case data == cbStartFetch:
		b.startFetch(ctx, chatID, messageID)
	case data == cbCancelFetch:
		b.cancelFetch(chatID, messageID)
	case data == cbBack:
		b.resetSession(chatID)
		b.edit(chatID, messageID, textMainMenu, mainMenuKeyboard())
	default:
		b.logger.Warn("unknown callback", "chat_id", chatID, "data", data)
	}

	b.answer(cb.ID, answer)
}

func (b *Bot) startFetch(ctx context.Context, chatID int64, messageID int) {
	session := b.session(chatID)

	filter, err := torgi.NewFilter(session.Subjects, session.Statuses, session.DateFrom, session.DateTo, session.ComputeCoordinates)
	if err != nil {
		text := textEmptyFilter
		if errors.Is(err, torgi.ErrInvalidDateRng) {
			text = "❌ Дата начала периода позже даты окончания."
		}
		b.edit(chatID, messageID, text, settingsKeyboard(session.ComputeCoordinates))
		return
	}

	b.mu.Lock()
	if _, ok := b.runs[chatID]; ok {
		b.mu.Unlock()
		b.edit(chatID, messageID, textAlreadyActive, cancelKeyboard())
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	run := &activeRun{cancel: cancel}
	b.runs[chatID] = run
	b.wg.Add(1)
	b.mu.Unlock()

	b.logger.Info("starting data fetch", "chat_id", chatID, "subjects", filter.Subjects, "statuses", filter.Statuses)
	b.edit(chatID, messageID, textStarted, cancelKeyboard())

	go func() {
		defer b.wg.Done()
		defer b.finishRun(chatID, run)

		b.fetch(runCtx, chatID, messageID, filter, session)
	}()
}

func (b *Bot) finishRun(chatID int64, run *activeRun) {
	run.cancel()

	b.mu.Lock()
	if b.runs[chatID] == run {
		delete(b.runs, chatID)
	}
	b.mu.Unlock()

	if err := b.progress.Clear(context.Background(), chatID); err != nil {
		b.logger.Warn("can't clear progress", "chat_id", chatID, logger.Err(err))
	}
}

func (b *Bot) cancelFetch(chatID int64, messageID int) {
	session := b.session(chatID)

	b.mu.Lock()
	run, ok := b.runs[chatID]
	if ok {
		delete(b.runs, chatID)
	}
	b.mu.Unlock()

	if !ok {
		b.edit(chatID, messageID, textNothingCancel, settingsKeyboard(session.ComputeCoordinates))
		return
	}

	run.cancel()
	b.logger.Info("fetch cancelled by user", "chat_id", chatID)
	b.edit(chatID, messageID, textCancelled, settingsKeyboard(session.ComputeCoordinates))
}

func (b *Bot) fetch(ctx context.Context, chatID int64, messageID int, filter torgi.Filter, session chatSession) {
	log := b.logger.With("chat_id", chatID)

	report := func(text string, done, total int) {
		updated, err := b.progress.Update(ctx, chatID, done, total, done >= total)
		if err != nil {
			log.Warn("can't update progress", logger.Err(err))
			return
		}
		if updated && ctx.Err() == nil {
			b.edit(chatID, messageID, text, cancelKeyboard())
		}
	}

	onProgress := func(done, total int) {
		report(fmt.Sprintf("⏳ Загрузка данных...\nОбработано страниц: %d/%d\nПожалуйста, подождите.", done, total), done, total)
	}
	onStage := func(stage pipeline.Stage, done, total int) {
		report(fmt.Sprintf("⏳ %s: %d/%d\nПожалуйста, подождите.", stageTitle(stage), done, total), done, total)
	}

	outcome, err := b.runner.run(ctx, filter, onProgress, onStage)

	switch {
	case ctx.Err() != nil:
		log.Info("fetch task was cancelled")
		return
	case err != nil:
		log.Error("error during data fetch", logger.Err(err))
		b.edit(chatID, messageID, textFetchError, settingsKeyboard(session.ComputeCoordinates))
		return
	case outcome.NoData:
		b.edit(chatID, messageID, textNoData, settingsKeyboard(session.ComputeCoordinates))
		return
	}

	defer func() {
		if err := os.Remove(outcome.Path); err != nil {
			log.Warn("can't remove result file", "path", outcome.Path, logger.Err(err))
			return
		}
		log.Info("file removed after sending", "path", outcome.Path)
	}()

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(outcome.Path))
	doc.Caption = fmt.Sprintf("✅ Данные успешно загружены!\n📊 Количество записей: %d\n🏢 Выбрано субъектов: %d\n📋 Выбрано статусов: %d",
		outcome.Records, len(filter.Subjects), len(filter.Statuses))

	if _, err := b.api.Send(doc); err != nil {
		log.Error("can't send result file", logger.Err(err))
		b.edit(chatID, messageID, textSendError, settingsKeyboard(session.ComputeCoordinates))
		return
	}

	b.edit(chatID, messageID, settingsText(session), settingsKeyboard(session.ComputeCoordinates))
}

func stageTitle(stage pipeline.Stage) string {
	switch stage {
	case pipeline.StageGeocoding:
		return "Определение координат"
	case pipeline.StageDetails:
		return "Загрузка карточек лотов"
	default:
		return string(stage)
	}
}

func settingsText(session chatSession) string {
	period := "любой"
	if session.DateFrom != nil && session.DateTo != nil {
		period = session.DateFrom.Format("02.01.2006") + " - " + session.DateTo.Format("02.01.2006")
	}

	coords := "нет"
	if session.ComputeCoordinates {
		coords = "да"
	}

	return fmt.Sprintf("⚙️ Настройки поиска:\nСубъектов выбрано: %d\nСтатусов выбрано: %d\nПериод торгов: %s\nКоординаты: %s",
		len(session.Subjects), len(session.Statuses), period, coords)
}

// toggle removes value from values when present and appends it otherwise.
func toggle(values []string, value string) ([]string, bool) {
	if i := slices.Index(values, value); i >= 0 {
		return slices.Delete(values, i, i+1), false
	}
	return append(values, value), true
}

func (b *Bot) session(chatID int64) chatSession {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.sessions[chatID]; ok {
		return s.clone()
	}
	return chatSession{}
}

func (b *Bot) updateSession(chatID int64, f func(s *chatSession)) chatSession {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[chatID]
	if !ok {
		s = &chatSession{}
		b.sessions[chatID] = s
	}
	f(s)
	return s.clone()
}

func (b *Bot) resetSession(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.sessions, chatID)
}

func (b *Bot) send(chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}

	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("can't send message", "chat_id", chatID, logger.Err(err))
	}
}

func (b *Bot) edit(chatID int64, messageID int, text string, markup tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup)

	if _, err := b.api.Request(msg); err != nil && !strings.Contains(err.Error(), "message is not modified") {
		b.logger.Error("can't edit message", "chat_id", chatID, logger.Err(err))
	}
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Warn("can't answer callback", logger.Err(err))
	}
}
