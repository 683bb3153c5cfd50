package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/prediction-arb/internal/apperror"
)

var (
	strikePattern = regexp.MustCompile(`\$(\d+(?:,\d{3})*(?:\.\d+)?)`)
	timePattern   = regexp.MustCompile(`(\d{1,2}):(\d{2})\s*UTC`)
)

var underlyingAliases = map[string][]string{
	"BTC": {"BTC", "BITCOIN"},
	"ETH": {"ETH", "ETHEREUM"},
	"SOL": {"SOL", "SOLANA"},
}

// MentionsUnderlying reports whether a title refers to the underlying by symbol or name.
func MentionsUnderlying(title, underlying string) bool {
	upper := strings.ToUpper(title)
	aliases, ok := underlyingAliases[strings.ToUpper(underlying)]
	if !ok {
		aliases = []string{strings.ToUpper(underlying)}
	}
	for _, alias := range aliases {
		if strings.Contains(upper, alias) {
			return true
		}
	}
	return false
}

// ParseStrike extracts the first dollar amount, e.g. "$95,000.50".
func ParseStrike(title string) (decimal.Decimal, bool) {
	m := strikePattern.FindStringSubmatch(title)
	if m == nil {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseExpiry resolves an "HH:MM UTC" time against ref. Times more than
// 12 hours before ref are taken to mean the next day.
func ParseExpiry(title string, ref time.Time) (time.Time, bool) {
	m := timePattern.FindStringSubmatch(title)
	if m == nil {
		return time.Time{}, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return time.Time{}, false
	}

	ref = ref.UTC()
	expiry := time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, 0, 0, time.UTC)
	if expiry.Before(ref.Add(-12 * time.Hour)) {
		expiry = expiry.Add(24 * time.Hour)
	}
	return expiry, true
}

// ParseTitle extracts market terms from a title such as
// "Will BTC be above $95,000 at 14:00 UTC?". A non-zero fallbackExpiry
// is used when the title carries no time.
func ParseTitle(title, underlying string, ref, fallbackExpiry time.Time) (MarketTerms, error) {
	if !MentionsUnderlying(title, underlying) {
		return MarketTerms{}, apperror.New(apperror.CodeUnparsableMarket,
			apperror.WithContext("underlying "+underlying+" not in title: "+title))
	}

	strike, ok := ParseStrike(title)
	if !ok {
		return MarketTerms{}, apperror.New(apperror.CodeUnparsableMarket,
			apperror.WithContext("no strike in title: "+title))
	}

	expiry, ok := ParseExpiry(title, ref)
	if !ok {
		if fallbackExpiry.IsZero() {
			return MarketTerms{}, apperror.New(apperror.CodeUnparsableMarket,
				apperror.WithContext("no expiry in title: "+title))
		}
		expiry = fallbackExpiry.UTC()
	}

	return MarketTerms{
		Title:      title,
		Underlying: strings.ToUpper(underlying),
		Strike:     strike,
		Expiry:     expiry,
	}, nil
}
