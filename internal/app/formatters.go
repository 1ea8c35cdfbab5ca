package app

import (
	"fmt"
	"strings"

	"github.com/bobmcallan/vire-insights/internal/models"
)

func formatMoney(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("$%.2f", v)
}

func formatSignedPct(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}

func formatOptPct(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", *v)
}

// formatInsights formats an insights envelope as markdown
func formatInsights(resp *models.InsightsResponse) string {
	var sb strings.Builder

	sb.WriteString("# Portfolio Insights\n\n")
	sb.WriteString(fmt.Sprintf("**Status:** %s\n", resp.Status))
	sb.WriteString(fmt.Sprintf("**Model:** %s\n", resp.Model))
	sb.WriteString(fmt.Sprintf("**Trace ID:** %s\n", resp.TraceID))
	if resp.Cached && resp.CachedAt != nil {
		sb.WriteString(fmt.Sprintf("**Cached:** yes (%s)\n", resp.CachedAt.Format("2006-01-02 15:04:05")))
	} else {
		sb.WriteString(fmt.Sprintf("**Cached:** no (compute %dms, narrative %dms)\n", resp.ComputeMS, resp.LLMMS))
	}
	if resp.Superseded {
		sb.WriteString("**Note:** a newer refresh for the same key won; this result was not stored\n")
	}
	sb.WriteString("\n")

	if p := resp.PreparedData; p != nil {
		s := p.Summary
		sb.WriteString("## Summary\n\n")
		sb.WriteString(fmt.Sprintf("- Horizon: %d months, profile %s\n", p.Params.HorizonMonths, p.Params.RiskProfile))
		sb.WriteString(fmt.Sprintf("- Equity: %s (cost %s)\n", formatMoney(s.TotalEquityUSD), formatMoney(s.TotalCostBasisUSD)))
		sb.WriteString(fmt.Sprintf("- Unrealized P&L: %s (%s)\n", formatMoney(s.UnrealizedPnLUSD), formatSignedPct(s.UnrealizedPnLPct)))
		sb.WriteString(fmt.Sprintf("- Expected return: %s, volatility %.2f%%\n", formatSignedPct(s.ExpectedReturnPct), s.VolatilityPct))
		sb.WriteString(fmt.Sprintf("- Risk: %.1f/100 (%s, %s target)\n", s.RiskScore, s.RiskClass, s.RiskAlignment))
		sb.WriteString(fmt.Sprintf("- Concentration: %.3f (%s)\n", s.ConcentrationIndex, s.ConcentrationClass))
		if len(s.PriceGaps) > 0 {
			sb.WriteString(fmt.Sprintf("- Missing prices: %s\n", strings.Join(s.PriceGaps, ", ")))
		}
		sb.WriteString("\n")

		writeBuckets(&sb, "Industry", p.Grouping.Industry)
		writeBuckets(&sb, "Growth", p.Grouping.Growth)
		writeBuckets(&sb, "Risk", p.Grouping.Risk)
	}

	if len(resp.PositionsWithInsights) > 0 {
		sb.WriteString("## Positions\n\n")
		sb.WriteString("| Symbol | Weight | Value | Growth | Risk | Action | Thesis |\n")
		sb.WriteString("|--------|--------|-------|--------|------|--------|--------|\n")
		for _, pa := range resp.PositionsWithInsights {
			action, thesis := "-", "_no annotation_"
			if pa.Insights != nil {
				action = pa.Insights.Action
				thesis = strings.ReplaceAll(pa.Insights.Thesis, "|", "/")
			}
			sb.WriteString(fmt.Sprintf("| %s | %.2f%% | %s | %s | %s | %s | %s |\n",
				pa.Symbol, pa.WeightPct, formatMoney(pa.MarketValueUSD),
				formatOptPct(pa.GrowthForecastPct), pa.RiskBucket, action, thesis))
		}
		sb.WriteString("\n")
	}

	if len(resp.Errors) > 0 {
		sb.WriteString("## Errors\n\n")
		for _, e := range resp.Errors {
			sb.WriteString(fmt.Sprintf("- **%s** `%s`: %s\n", e.Kind, e.Code, e.Message))
			if e.RawText != "" {
				sb.WriteString(fmt.Sprintf("\n```\n%s\n```\n", e.RawText))
			}
		}
	}

	return sb.String()
}

func writeBuckets(sb *strings.Builder, title string, buckets []models.Bucket) {
	if len(buckets) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("### %s\n\n", title))
	sb.WriteString("| Bucket | Weight | Avg Return | Members |\n")
	sb.WriteString("|--------|--------|------------|---------|\n")
	for _, b := range buckets {
		sb.WriteString(fmt.Sprintf("| %s | %.2f%% | %s | %s |\n",
			b.Name, b.WeightPct, formatOptPct(b.AvgExpectedReturnPct), strings.Join(b.MemberSymbols, ", ")))
	}
	sb.WriteString("\n")
}
