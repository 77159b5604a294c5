// Package timeparse разбирает человеческий ввод срока задачи
// ("明天下午3点", "tomorrow 9", "2026-01-15 18:30", "无") в абсолютное время.
package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Offset - фиксированная поправка UTC+8: настенное время пользователя
// трактуется в зоне сервера и сдвигается на Offset назад.
const Offset = 8 * time.Hour

// Display - зона, в которой сроки показываются пользователю.
var Display = time.FixedZone("UTC+8", int(Offset/time.Second))

// Placeholder выводится вместо отсутствующего срока.
const Placeholder = "—"

type Kind int

const (
	Invalid Kind = iota
	None
	Timestamp
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Timestamp:
		return "timestamp"
	default:
		return "invalid"
	}
}

// Result - итог разбора. At заполнен только для Kind == Timestamp.
type Result struct {
	Kind Kind
	At   time.Time
}

// Deadline возвращает срок для сохранения (nil для None и Invalid).
func (r Result) Deadline() *time.Time {
	if r.Kind != Timestamp {
		return nil
	}
	at := r.At
	return &at
}

var normalizer = strings.NewReplacer(
	"點", "点",
	"後", "后",
	"無", "无",
	"沒", "没",
	"間", "间",
	"鐘", "钟",
)

var noDeadline = map[string]struct{}{
	"无":    {},
	"没有":   {},
	"不用":   {},
	"none": {},
	"null": {},
}

var (
	relativeWithTime = regexp.MustCompile(
		`^(今天|今晚|明天|后天|today|tonight|tomorrow|day after tomorrow)\s*` +
			`(早上|上午|中午|下午|晚上|morning|forenoon|noon|afternoon|evening)?\s*` +
			`(\d{1,2})(?:(?::|点)(\d{1,2})?)?\s*(?:分|钟)?$`)
	absoluteDate = regexp.MustCompile(
		`^(\d{4})[-/](\d{1,2})[-/](\d{1,2})(?:\s+(\d{1,2}):(\d{1,2}))?$`)
)

type Parser struct {
	now        func() time.Time
	shiftToday bool
}

type Option func(*Parser)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// WithShiftToday включает поправку Offset и для голого "今天".
// По умолчанию выключено: исторически "今天" возвращался без сдвига.
func WithShiftToday(shift bool) Option {
	return func(p *Parser) {
		p.shiftToday = shift
	}
}

func New(opts ...Option) *Parser {
	p := &Parser{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = New()

// Parse разбирает ввод парсером по умолчанию (time.Now, зона UTC).
func Parse(input string) Result {
	return defaultParser.Parse(input)
}

func (p *Parser) Parse(input string) Result {
	text := normalizer.Replace(strings.ToLower(strings.TrimSpace(input)))
	if text == "" {
		return Result{Kind: Invalid}
	}

	if _, ok := noDeadline[text]; ok {
		return Result{Kind: None}
	}

	// календарные дни всегда считаются в UTC; Offset - единственная поправка
	now := p.now().UTC()

	switch text {
	case "今天", "today":
		at := endOfDay(now, 0)
		if p.shiftToday {
			at = at.Add(-Offset)
		}
		return timestamp(at)
	case "明天", "tomorrow":
		return timestamp(endOfDay(now, 1).Add(-Offset))
	case "后天", "day after tomorrow":
		return timestamp(endOfDay(now, 2).Add(-Offset))
	}

	if m := relativeWithTime.FindStringSubmatch(text); m != nil {
		return p.relative(now, m)
	}

	if m := absoluteDate.FindStringSubmatch(text); m != nil {
		return p.absolute(m)
	}

	return Result{Kind: Invalid}
}

func (p *Parser) relative(now time.Time, m []string) Result {
	dayWord, period := m[1], m[2]

	hour, _ := strconv.Atoi(m[3])
	minute := 0
	if m[4] != "" {
		minute, _ = strconv.Atoi(m[4])
	}

	days := 0
	switch dayWord {
	case "明天", "tomorrow":
		days = 1
	case "后天", "day after tomorrow":
		days = 2
	case "今晚", "tonight":
		if period == "" {
			period = "晚上"
		}
	}

	switch period {
	case "下午", "晚上", "afternoon", "evening":
		if hour < 12 {
			hour += 12
		}
	case "中午", "noon":
		if hour < 11 {
			hour += 12
		}
	}

	if hour > 23 || minute > 59 {
		return Result{Kind: Invalid}
	}

	at := time.Date(now.Year(), now.Month(), now.Day()+days, hour, minute, 0, 0, time.UTC)
	return timestamp(at.Add(-Offset))
}

func (p *Parser) absolute(m []string) Result {
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])

	hour, minute := 23, 59
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		minute, _ = strconv.Atoi(m[5])
	}

	if month < 1 || month > 12 || hour > 23 || minute > 59 {
		return Result{Kind: Invalid}
	}

	at := time.Date(year, time.Month(month), day, hour, minute, 59, int(999*time.Millisecond), time.UTC)
	// 2026-02-30 и подобные time.Date молча переносит на следующий месяц
	if at.Day() != day {
		return Result{Kind: Invalid}
	}

	return timestamp(at.Add(-Offset))
}

func endOfDay(now time.Time, addDays int) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+addDays, 23, 59, 59, int(999*time.Millisecond), now.Location())
}

func timestamp(at time.Time) Result {
	return Result{Kind: Timestamp, At: at}
}

// Format показывает срок в зоне UTC+8; для nil возвращает Placeholder.
func Format(t *time.Time) string {
	if t == nil {
		return Placeholder
	}
	return t.In(Display).Format("2006/01/02 15:04")
}
