package poller

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// UnknownErrorText stands in for an empty error body.
const UnknownErrorText = "Неизвестная ошибка"

// ParseErrorText is the user-facing replacement for any response that could
// not be decoded.
const ParseErrorText = "Некорректный формат ответа сервера"

// NetworkError reports that no usable response was received.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError reports a non-2xx response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		body = UnknownErrorText
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, body)
}

// BusinessError reports a 2xx response whose payload declares an error.
type BusinessError struct {
	Message string
}

func (e *BusinessError) Error() string { return e.Message }

// ParseError reports a response body that is not the expected JSON.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid response payload: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// CheckStatus returns resp.Error if set, an *[HTTPError] for a non-2xx
// status, or nil.
func CheckStatus(resp Response) error {
	if resp.Error != nil {
		return resp.Error
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Body: truncate(resp.Body, 500)}
	}
	return nil
}

// DecodeJSON unmarshals body into v, wrapping syntax and type mismatches
// in *[ParseError].
func DecodeJSON(body []byte, v any) error {
	err := json.Unmarshal(body, v)
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || looksLikeParserError(err.Error()) {
		return &ParseError{Err: err}
	}
	return err
}

// parser error substrings seen from encoding/json and from proxies that
// relay a browser-side decode failure
var parserErrorMarkers = []string{
	"unexpected end of JSON input",
	"invalid character",
	"Unexpected token",
	"cannot unmarshal",
}

func looksLikeParserError(msg string) bool {
	for _, m := range parserErrorMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// UserMessage returns the text shown to the operator for err. Only a
// *[ParseError] is replaced with [ParseErrorText]; server-supplied messages
// are shown as they are.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return ParseErrorText
	}
	return err.Error()
}

// truncate cuts b to at most n bytes without splitting a UTF-8 sequence.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return string(b[:cut]) + "..."
}
