package ai

import (
	"context"
	"fmt"
	"time"

	"julianmorley.ca/con-plar/topup-storefront/pkg/mongo"
)

type Report struct {
	Status      string     `json:"status"`
	Data        ReportData `json:"data"`
	GeneratedAt time.Time  `json:"generated_at"`
	AIEnabled   bool       `json:"ai_enabled"`
}

type ReportData struct {
	RawData    []mongo.AttemptSummary `json:"raw_data"`
	AIInsights string                 `json:"ai_insights,omitempty"`
	Summary    string                 `json:"summary"`
	Error      string                 `json:"error,omitempty"`
}

// AttemptReport describes the journal summary. A failed completion still
// returns the raw figures.
func (r *Reporter) AttemptReport(ctx context.Context, summaries []mongo.AttemptSummary) *Report {
	report := &Report{
		Status:      "success",
		GeneratedAt: r.now(),
		AIEnabled:   r.Enabled(),
		Data: ReportData{
			RawData: summaries,
			Summary: headline(summaries),
		},
	}
	if !r.Enabled() || len(summaries) == 0 {
		return report
	}

	insights, err := r.generateCompletion(ctx, AttemptReportSystemPrompt, formatAttemptPrompt(summaries))
	if err != nil {
		report.Data.Error = "AI analysis failed: " + err.Error()
		return report
	}
	report.Data.AIInsights = insights
	return report
}

func headline(summaries []mongo.AttemptSummary) string {
	var attempts, partial int
	for _, s := range summaries {
		attempts += s.Attempts
		partial += s.Partial
	}
	if attempts == 0 {
		return "Sin intentos de compra registrados"
	}
	return fmt.Sprintf("%d intentos de compra, %d con órdenes parciales por conciliar", attempts, partial)
}
