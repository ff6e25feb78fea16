package render

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"golang.org/x/text/number"

	"github.com/jpalmerr/statusboard/internal/snapshot"
)

// InvalidDate is shown for a last-success value that is not a timestamp.
const InvalidDate = "Invalid Date"

// Message keys, in English. Other languages are looked up in the catalog.
const (
	MsgTitle       = "Container status"
	MsgAddress     = "IP address"
	MsgPingTime    = "Ping time (ms)"
	MsgLastSuccess = "Date of last successful attempt"
	MsgHostname    = "Hostname"
	MsgNoData      = "No data"
	MsgUpdated     = "Updated"
)

// dateLayouts mirrors the date/time rendering browsers use for each locale.
// The first entry is the fallback.
var dateLayouts = []struct {
	tag    language.Tag
	layout string
}{
	{language.AmericanEnglish, "1/2/2006, 3:04:05 PM"},
	{language.BritishEnglish, "02/01/2006, 15:04:05"},
	{language.German, "2.1.2006, 15:04:05"},
	{language.French, "02/01/2006 15:04:05"},
	{language.Russian, "02.01.2006, 15:04:05"},
	{language.Spanish, "2/1/2006, 15:04:05"},
	{language.Italian, "2/1/2006, 15:04:05"},
	{language.BrazilianPortuguese, "02/01/2006, 15:04:05"},
	{language.Dutch, "2-1-2006, 15:04:05"},
	{language.Polish, "2.01.2006, 15:04:05"},
	{language.Japanese, "2006/1/2 15:04:05"},
	{language.Chinese, "2006/1/2 15:04:05"},
}

var matcher = func() language.Matcher {
	tags := make([]language.Tag, len(dateLayouts))
	for i, d := range dateLayouts {
		tags[i] = d.tag
	}
	return language.NewMatcher(tags)
}()

// messages holds the translated column headers.
var messages = func() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	ru := map[string]string{
		MsgTitle:       "Статус контейнеров",
		MsgAddress:     "IP адрес",
		MsgPingTime:    "Время пинга (мс)",
		MsgLastSuccess: "Дата последней успешной попытки",
		MsgHostname:    "Имя хоста",
		MsgNoData:      "Нет данных",
		MsgUpdated:     "Обновлено",
	}
	for key, msg := range ru {
		_ = b.SetString(language.Russian, key, msg)
	}
	return b
}()

// ParseLocale converts POSIX (ru_RU.UTF-8) or BCP 47 (ru-RU) locale names
// to a language tag. "C", "POSIX" and unparseable values yield en-US.
func ParseLocale(s string) language.Tag {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, "_", "-")
	if s == "" || strings.EqualFold(s, "C") || strings.EqualFold(s, "POSIX") {
		return language.AmericanEnglish
	}
	tag, err := language.Parse(s)
	if err != nil {
		return language.AmericanEnglish
	}
	return tag
}

// Formatter renders record fields for one locale and time zone.
type Formatter struct {
	tag     language.Tag
	layout  string
	loc     *time.Location
	printer *message.Printer
}

// NewFormatter returns a [Formatter] for locale (see [ParseLocale]) that
// shows times in loc. A nil loc means time.Local.
func NewFormatter(locale string, loc *time.Location) Formatter {
	if loc == nil {
		loc = time.Local
	}
	requested := ParseLocale(locale)
	_, idx, conf := matcher.Match(requested)
	if conf == language.No {
		idx = 0
	}
	tag := dateLayouts[idx].tag

	return Formatter{
		tag:     tag,
		layout:  dateLayouts[idx].layout,
		loc:     loc,
		printer: message.NewPrinter(tag, message.Catalog(messages)),
	}
}

// Locale returns the matched locale.
func (f Formatter) Locale() language.Tag {
	return f.tag
}

// Location returns the display time zone.
func (f Formatter) Location() *time.Location {
	return f.loc
}

// Date renders t with the locale's date/time layout. The zero time renders
// as an empty string.
func (f Formatter) Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(f.loc).Format(f.layout)
}

// LastSuccess renders a record's last-success cell.
func (f Formatter) LastSuccess(r snapshot.Record) string {
	if r.RawLastSuccess != "" {
		return InvalidDate
	}
	return f.Date(r.LastSuccessAt)
}

// Latency renders a millisecond value with locale digit grouping and at
// most two fraction digits.
func (f Formatter) Latency(ms float64) string {
	return f.printer.Sprint(number.Decimal(ms, number.MaxFractionDigits(2)))
}

// T translates a message key.
func (f Formatter) T(key string) string {
	return f.printer.Sprintf(key)
}
