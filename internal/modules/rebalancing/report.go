package rebalancing

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
)

func formatAmount(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}

func formatPercent(pct float64) string {
	return decimal.NewFromFloat(pct).StringFixed(2)
}

// WriteReport renders a result as plain-text tables
func WriteReport(w io.Writer, result *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', tabwriter.AlignRight)

	fmt.Fprintf(w, "Rebalance %s (%s)\n", result.ID, result.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	if result.DryRun {
		fmt.Fprintln(w, "Dry run: nothing was committed")
	}
	fmt.Fprintf(w, "Common currency: %s\n\n", result.CommonCurrency)

	fmt.Fprintln(tw, "Ticker\tPrice\tUnits\tCost\tCurrency\tOld %\tNew %\tTarget %\t")
	for _, ticker := range result.Tickers {
		price := result.Prices[ticker]
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t\n",
			ticker,
			formatAmount(price.Amount),
			result.NewUnits[ticker],
			formatAmount(result.Cost[ticker]),
			price.Currency,
			formatPercent(result.OldAllocation[ticker]),
			formatPercent(result.NewAllocation[ticker]),
			formatPercent(result.TargetAllocation[ticker]),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nLargest deviation from target: %s%%\n", formatPercent(result.MaxAllocationDeviation))

	fmt.Fprintln(w, "\nRemaining cash:")
	for _, pool := range result.RemainingCash {
		fmt.Fprintf(w, "  %s %s\n", formatAmount(pool.Amount), pool.Currency)
	}

	fmt.Fprintln(w, "\nCurrency exchanges:")
	if len(result.ExchangeHistory) == 0 {
		fmt.Fprintln(w, "  none")
	}
	for _, record := range result.ExchangeHistory {
		fmt.Fprintf(w, "  %s %s -> %s %s @ %s\n",
			formatAmount(record.FromAmount), record.FromCurrency,
			formatAmount(record.ToAmount), record.ToCurrency,
			decimal.NewFromFloat(record.Rate).StringFixed(6))
	}

	return nil
}
