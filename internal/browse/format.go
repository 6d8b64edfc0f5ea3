package browse

import (
	"fmt"

	"github.com/nao1215/irharvest/internal/market"
	"github.com/shopspring/decimal"
)

var capUnits = []struct {
	suffix string
	size   decimal.Decimal
}{
	{"T", decimal.New(1, 12)},
	{"B", decimal.New(1, 9)},
	{"M", decimal.New(1, 6)},
}

// formatMarketCap renders a market cap like "8.61B USD".
func formatMarketCap(q *market.Quote) string {
	value := q.MarketCap.StringFixed(0)
	for _, u := range capUnits {
		if q.MarketCap.GreaterThanOrEqual(u.size) {
			value = q.MarketCap.Div(u.size).StringFixed(2) + u.suffix
			break
		}
	}
	if q.Currency != "" {
		return value + " " + q.Currency
	}
	return value
}

// formatSize renders a byte count with a binary unit.
func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
