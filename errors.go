package importdesk

import (
	"errors"

	"github.com/kadrsp/importdesk/internal/poller"
	"github.com/kadrsp/importdesk/internal/upload"
)

// Failure taxonomy shared by polling and uploads. Match with errors.As.
type (
	// NetworkError reports that no usable response was received.
	NetworkError = poller.NetworkError

	// HTTPError reports a non-2xx response; it carries the status code and
	// the response body text.
	HTTPError = poller.HTTPError

	// BusinessError reports a 2xx response whose payload declares an error.
	BusinessError = poller.BusinessError

	// ParseError reports a response body that is not the expected JSON.
	ParseError = poller.ParseError

	// MissingSheetsError lists curriculum sheets absent from a workbook.
	MissingSheetsError = upload.MissingSheetsError
)

// Validation failures detected before any request is made. Match with
// errors.Is.
var (
	ErrNoFile            = upload.ErrNoFile
	ErrUnsupportedFormat = upload.ErrUnsupportedFormat
	ErrMissingSheets     = upload.ErrMissingSheets

	// ErrSubmitInProgress is returned when the same form is submitted again
	// before the previous submission finished.
	ErrSubmitInProgress = errors.New("submission already in progress")
)

// UserMessage returns the operator-facing text for err. Response decode
// failures are replaced with a generic message.
func UserMessage(err error) string {
	return poller.UserMessage(err)
}
