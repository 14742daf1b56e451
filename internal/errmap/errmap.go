// Package errmap turns backend and transport failures into the short
// messages shown next to the section that triggered them.
package errmap

import (
	"errors"
	"net/http"
	"strings"

	"github.com/KaramelBytes/qstorm-cli/internal/api"
)

// Locale selects the message table.
type Locale string

const (
	Japanese Locale = "ja"
	English  Locale = "en"
)

// Kind is the coarse failure class a section reacts to.
type Kind int

const (
	KindTransport Kind = iota
	KindValidation
	KindNameConflict
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNameConflict:
		return "name_conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "transport"
	}
}

type table struct {
	byStatus map[int]string
	generic  string
}

var tables = map[Locale]table{
	Japanese: {
		byStatus: map[int]string{
			http.StatusConflict:   "このセッション内には同じ名前のデータセットが既に存在します",
			http.StatusNotFound:   "データセットが見つかりません",
			http.StatusBadRequest: "不正な入力です",
		},
		generic: "エラーが発生しました",
	},
	English: {
		byStatus: map[int]string{
			http.StatusConflict:   "A dataset with this name already exists in this session",
			http.StatusNotFound:   "Dataset not found",
			http.StatusBadRequest: "Invalid input",
		},
		generic: "An error occurred",
	},
}

// ParseLocale falls back to Japanese for anything it does not recognise.
func ParseLocale(s string) Locale {
	l := Locale(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := tables[l]; ok {
		return l
	}
	return Japanese
}

// Mapper resolves messages for one locale. The zero value uses Japanese.
type Mapper struct {
	Locale Locale
}

// New returns a Mapper for the given locale string.
func New(locale string) Mapper { return Mapper{Locale: ParseLocale(locale)} }

func (m Mapper) table() table {
	if t, ok := tables[m.Locale]; ok {
		return t
	}
	return tables[Japanese]
}

// Map returns the display string for a status (0 = none) and server detail
// ("" = none). Known statuses win over detail; otherwise the detail is shown,
// otherwise the generic message. It never fails.
func (m Mapper) Map(status int, detail string) string {
	t := m.table()
	if msg, ok := t.byStatus[status]; ok {
		return msg
	}
	if d := strings.TrimSpace(detail); d != "" {
		return d
	}
	return t.generic
}

// Generic is the fallback message.
func (m Mapper) Generic() string { return m.table().generic }

// FromError maps any error produced by the api client or the workflow layer.
func (m Mapper) FromError(err error) string {
	if err == nil {
		return ""
	}
	if status, ok := api.StatusOf(err); ok {
		return m.Map(status, api.DetailOf(err))
	}
	var v interface{ ValidationMessage() string }
	if errors.As(err, &v) {
		return m.Map(0, v.ValidationMessage())
	}
	// Transport failures carry no server detail worth showing.
	return m.Generic()
}

// Classify places err in the error taxonomy.
func Classify(err error) Kind {
	var v interface{ ValidationMessage() string }
	if errors.As(err, &v) {
		return KindValidation
	}
	status, ok := api.StatusOf(err)
	if !ok {
		return KindTransport
	}
	switch status {
	case http.StatusConflict:
		return KindNameConflict
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	default:
		return KindTransport
	}
}

// Map is shorthand for the Japanese table.
func Map(status int, detail string) string { return Mapper{}.Map(status, detail) }
