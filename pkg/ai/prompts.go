package ai

import (
	"fmt"
	"strings"

	"julianmorley.ca/con-plar/topup-storefront/pkg/mongo"
)

const AttemptReportSystemPrompt = `You are an operations analyst for a digital top-up store.
Orders are created one per cart line; a failed checkout may already have created some orders.
Given checkout attempt figures grouped by status, write a short report in Spanish covering:
- How many checkouts succeeded and failed
- Partial failures that need manual reconciliation with the payment reference
- Whether session expiry is a frequent cause of failure
Keep it to two short paragraphs.`

// formatAttemptPrompt renders the summary as a plain table for the model.
func formatAttemptPrompt(summaries []mongo.AttemptSummary) string {
	var b strings.Builder
	b.WriteString("status | attempts | orders_created | partial | auth_failures\n")
	for _, s := range summaries {
		fmt.Fprintf(&b, "%s | %d | %d | %d | %d\n", s.Status, s.Attempts, s.OrdersCreated, s.Partial, s.AuthFailures)
	}
	return b.String()
}
