package engine

import (
	"strings"

	"github.com/anatolykoptev/go-kit/strutil"
)

// User-Agent sent to the YouTube Data API.
const UserAgentBot = "GoTrend/1.0"

// TruncateRunes caps s at limit runes, appending suffix if truncated.
// Pass suffix="" for no suffix. Safe for UTF-8 (Cyrillic, CJK, emoji).
func TruncateRunes(s string, limit int, suffix string) string {
	return strutil.TruncateWith(s, limit, suffix)
}

// NormCountry upper-cases and trims a country code.
func NormCountry(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
