package importdesk

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/kadrsp/importdesk/internal/store"
)

// Banner is the status message shown above the teachers table.
type Banner = store.Banner

// Board is a snapshot of everything the page displays.
type Board = store.Board

// Banner kinds.
const (
	KindInfo    = "info"
	KindSuccess = "success"
	KindDanger  = "danger"
)

// Operator-facing texts.
const (
	msgSelectFile             = "Выберите файл!"
	msgSelectFileForUpload    = "Выберите файл для загрузки!"
	msgUnsupportedFormat      = "Формат файла не поддерживается. Загрузите .xlsx файл"
	msgTeachersImporting      = "Идет импорт данных..."
	msgTeachersAwaitingData   = "Импорт завершен, ожидаем данные..."
	msgCurriculumProcessing   = "Идёт обработка файла..."
	msgPollSucceeded          = "Данные успешно загружены!"
	msgPollExhausted          = "Не удалось загрузить данные. Попробуйте обновить страницу."
	msgCurriculumImportedTmpl = "Загружено %d записей"
	msgSubmitInProgress       = "Загрузка уже выполняется, дождитесь завершения"
)

var printer = message.NewPrinter(language.Russian)

func importedMessage(n int) string {
	return printer.Sprintf(msgCurriculumImportedTmpl, n)
}

func failureMessage(err error) string {
	return fmt.Sprintf("Ошибка: %s", UserMessage(err))
}
