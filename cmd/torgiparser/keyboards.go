package main

import (
	"slices"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mishannn/torgiparser-go/internal/refdata"
)

const subjectsPerPage = 10

const (
	cbSettings      = "settings"
	cbSelectSubject = "select_subject"
	cbSelectStatus  = "select_status"
	cbToggleCoords  = "toggle_coords"
	cbStartFetch    = "start_fetch"
	cbCancelFetch   = "cancel_fetch"
	cbBack          = "back"
	cbPrevPage      = "prev_page"
	cbNextPage      = "next_page"
	cbDoneSubjects  = "done_subjects"
	cbDoneStatuses  = "done_statuses"

	cbSubjectPrefix = "subject_"
	cbStatusPrefix  = "status_"
)

func botCommands() []tgbotapi.BotCommand {
	return []tgbotapi.BotCommand{
		{Command: "start", Description: "Запустить бота"},
		{Command: "settings", Description: "Настройки поиска"},
		{Command: "dates", Description: "Период проведения торгов: /dates 2024-06-01 2024-06-30"},
		{Command: "status", Description: "Ход текущего запроса"},
	}
}

func mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⚙️ Настройки", cbSettings)),
	)
}

func settingsKeyboard(computeCoordinates bool) tgbotapi.InlineKeyboardMarkup {
	coords := "🌐 Координаты: выкл"
	if computeCoordinates {
		coords = "🌐 Координаты: вкл"
	}

	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🏢 Субъект РФ", cbSelectSubject)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📊 Статус", cbSelectStatus)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(coords, cbToggleCoords)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("▶️ Старт", cbStartFetch)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", cbBack)),
	)
}

func cancelKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("❌ Отменить", cbCancelFetch)),
	)
}

// maxSubjectsPage is the last page index of the subject keyboard.
func maxSubjectsPage(subjects []refdata.Subject) int {
	if len(subjects) == 0 {
		return 0
	}
	return (len(subjects) - 1) / subjectsPerPage
}

func subjectsKeyboard(subjects []refdata.Subject, page int, selected []string) tgbotapi.InlineKeyboardMarkup {
	page = max(0, min(page, maxSubjectsPage(subjects)))
	start := page * subjectsPerPage
	end := min(start+subjectsPerPage, len(subjects))

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, subjectsPerPage+2)
	for _, subject := range subjects[start:end] {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(mark(slices.Contains(selected, subject.Code))+subject.Name, cbSubjectPrefix+subject.Code),
		))
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️", cbPrevPage))
	}
	if end < len(subjects) {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("➡️", cbNextPage))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ Готово", cbDoneSubjects)))

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func statusKeyboard(statuses []refdata.Status, selected []string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(statuses)+1)
	for _, status := range statuses {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(mark(slices.Contains(selected, status.Code))+status.Name, cbStatusPrefix+status.Code),
		))
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ Готово", cbDoneStatuses)))

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func mark(selected bool) string {
	if selected {
		return "✅ "
	}
	return ""
}
