// Package dateutil provides date normalization and render-locale handling.
package dateutil

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"
)

// Sentinel errors for date and locale operations.
var (
	ErrInvalidDateFormat = errors.New("invalid date format")
	ErrInvalidLocale     = errors.New("invalid locale tag")
)

// MaxDateFormatLength limits format string length to prevent abuse.
const MaxDateFormatLength = 50

// DefaultDateFormat is used when "auto" is specified without a format.
const DefaultDateFormat = "YYYY-MM-DD"

// dateTokens maps user-friendly tokens to Go time format components.
// Ordered by length descending for greedy matching.
var dateTokens = []struct {
	token string
	goFmt string
}{
	{"YYYY", "2006"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"YY", "06"},
	{"MM", "01"},
	{"DD", "02"},
	{"M", "1"},
	{"D", "2"},
}

// DatePresets provides named shortcuts for common date formats.
var DatePresets = map[string]string{
	"iso":      "YYYY-MM-DD",
	"european": "DD/MM/YYYY",
	"us":       "MM/DD/YYYY",
	"long":     "MMMM D, YYYY",
}

// renderLocale is the process-wide locale for date resolution. The driver
// sets it per format before executing a render context; contexts run
// strictly sequentially, so a single slot with a lock is sufficient.
var (
	localeMu     sync.RWMutex
	renderLocale = language.AmericanEnglish
)

// SetRenderLocale parses and installs the locale used by auto date
// resolution. An empty tag resets to the default (en-US).
func SetRenderLocale(tag string) error {
	if tag == "" {
		localeMu.Lock()
		renderLocale = language.AmericanEnglish
		localeMu.Unlock()
		return nil
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidLocale, tag, err)
	}
	localeMu.Lock()
	renderLocale = parsed
	localeMu.Unlock()
	return nil
}

// RenderLocale returns the currently installed render locale.
func RenderLocale() language.Tag {
	localeMu.RLock()
	defer localeMu.RUnlock()
	return renderLocale
}

// localePreset picks the date preset conventional for the current locale's
// region. Only the US uses month-first ordering.
func localePreset() string {
	region, conf := RenderLocale().Region()
	if conf == language.No {
		return "iso"
	}
	switch region.String() {
	case "US", "PH":
		return "us"
	case "GB", "FR", "DE", "ES", "IT", "PT", "NL", "BE", "IE", "AU", "NZ", "IN", "BR", "MX", "AR":
		return "european"
	default:
		return "iso"
	}
}

// ParseDateFormat converts a user-friendly format string to Go's time format.
// Tokens: YYYY, YY, MMMM, MMM, MM, M, DD, D.
// Use brackets to escape literal text: [Date] preserves "Date" literally.
// Any non-token characters outside brackets are preserved as literals.
// Returns ErrInvalidDateFormat if the format is empty, too long, or has
// unclosed brackets.
func ParseDateFormat(format string) (string, error) {
	if format == "" {
		return "", fmt.Errorf("%w: format cannot be empty", ErrInvalidDateFormat)
	}
	if len(format) > MaxDateFormatLength {
		return "", fmt.Errorf("%w: format exceeds %d characters", ErrInvalidDateFormat, MaxDateFormatLength)
	}

	var result strings.Builder
	result.Grow(len(format) + 10)

	i := 0
	for i < len(format) {
		// Handle bracket-escaped literal text
		if format[i] == '[' {
			end := strings.Index(format[i+1:], "]")
			if end == -1 {
				return "", fmt.Errorf("%w: unclosed bracket at position %d", ErrInvalidDateFormat, i)
			}
			result.WriteString(format[i+1 : i+1+end])
			i += end + 2
			continue
		}

		matched := false
		for _, t := range dateTokens {
			if strings.HasPrefix(format[i:], t.token) {
				result.WriteString(t.goFmt)
				i += len(t.token)
				matched = true
				break
			}
		}

		if !matched {
			result.WriteByte(format[i])
			i++
		}
	}

	return result.String(), nil
}

// ResolveDate handles "auto" and "auto:FORMAT" syntax for date values.
//   - "auto" → current date in the locale-conventional format
//   - "auto:FORMAT" → current date in a custom format (e.g. "auto:DD/MM/YYYY")
//   - "auto:preset" → current date using a named preset (iso, european, us, long)
//   - any other value → returned unchanged (passthrough)
//
// The time parameter allows injecting a fixed time for testing.
func ResolveDate(value string, t time.Time) (string, error) {
	lower := strings.ToLower(value)

	if !strings.HasPrefix(lower, "auto") {
		return value, nil
	}

	if lower == "auto" {
		goFmt, err := ParseDateFormat(DatePresets[localePreset()])
		if err != nil {
			return "", err
		}
		return t.Format(goFmt), nil
	}

	if !strings.HasPrefix(lower, "auto:") {
		return "", fmt.Errorf("%w: invalid auto syntax %q, use \"auto\" or \"auto:FORMAT\"", ErrInvalidDateFormat, value)
	}

	formatPart := value[5:] // skip "auto:"
	if formatPart == "" {
		return "", fmt.Errorf("%w: format cannot be empty after \"auto:\"", ErrInvalidDateFormat)
	}

	if preset, ok := DatePresets[strings.ToLower(formatPart)]; ok {
		formatPart = preset
	}

	goFmt, err := ParseDateFormat(formatPart)
	if err != nil {
		return "", err
	}

	return t.Format(goFmt), nil
}

// NormalizeDate applies ResolveDate to string values and passes everything
// else through untouched. Resolution errors leave the value as-is; a bad
// date string is a content problem, not a render-stopping one.
func NormalizeDate(value any, t time.Time) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	resolved, err := ResolveDate(s, t)
	if err != nil {
		return value
	}
	return resolved
}
