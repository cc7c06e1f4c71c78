package ai

import (
	"fmt"
	"strings"
)

const systemPrompt = "You are an expert Fintech Risk Analyst AI. Your job is to analyze transaction disputes to detect fraud, assess risk, and recommend actions."

// BuildPrompt renders the single templated request sent to every provider.
func BuildPrompt(in DisputeInput) string {
	b := &strings.Builder{}
	b.WriteString("Analyze the following dispute case:\n")
	fmt.Fprintf(b, "- Description: %s\n", strings.TrimSpace(in.Text))
	fmt.Fprintf(b, "- Amount: $%.2f\n", in.Amount)
	fmt.Fprintf(b, "- Merchant Category: %s\n\n", strings.TrimSpace(in.Category))
	b.WriteString("Return a valid JSON object with the following keys:\n")
	b.WriteString("- classification: (String) One of [Unauthorized Transaction, Subscription Confusion, Merchant Dispute, Refund Abuse, Duplicate Charge, Unknown]\n")
	b.WriteString("- summary: (String) One sentence summary of the claim.\n")
	b.WriteString("- fraud_signals: (List[String]) List of suspicious indicators or emotional markers.\n")
	b.WriteString("- risk_level: (String) One of [Low, Medium, High]\n")
	b.WriteString("- financial_exposure: (String) Estimate of potential loss (e.g., \"Full Amount\", \"Partial\", \"None\")\n")
	b.WriteString("- recommended_action: (String) One of [Auto Approve Refund, Manual Review Required, Request Documentation, Flag Account, Flag Account & Freeze Card, Auto Resolve]\n")
	b.WriteString("- reasoning_steps: (List[String]) Step-by-step logic used to reach the conclusion.\n\n")
	b.WriteString("Ensure the output is pure JSON without markdown formatting.")
	return b.String()
}
