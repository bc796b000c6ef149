// Package alerts publishes a message when an analyzed deal meets the
// investor's criteria.
package alerts

import (
	"context"
	"fmt"
	"strings"

	"deal-analyzer/internal/common/aws"
	"deal-analyzer/internal/common/logger"
	"deal-analyzer/internal/models"

	"github.com/shopspring/decimal"
)

// SNSNotifier publishes deal matches to an SNS topic.
type SNSNotifier struct {
	client   *aws.SNSClient
	topicARN string
	logger   logger.Logger
}

func NewSNSNotifier(client *aws.SNSClient, topicARN string, log logger.Logger) *SNSNotifier {
	return &SNSNotifier{
		client:   client,
		topicARN: topicARN,
		logger:   log.WithFields(map[string]interface{}{"component": "alerts"}),
	}
}

func (n *SNSNotifier) Notify(ctx context.Context, result models.AnalysisResult) error {
	if !result.MeetsCriteria {
		return nil
	}

	attrs := map[string]string{
		"analysisId":    result.ID,
		"fundingSource": string(result.Financing.FundingSource),
	}
	if result.Property.State != "" {
		attrs["state"] = result.Property.State
	}
	if result.Property.ZipCode != "" {
		attrs["zipCode"] = result.Property.ZipCode
	}

	id, err := n.client.PublishToTopic(ctx, n.topicARN, Subject(result), Message(result), attrs)
	if err != nil {
		return fmt.Errorf("publish deal alert: %w", err)
	}
	n.logger.Info("Deal alert published", map[string]interface{}{
		"analysisId": result.ID,
		"messageId":  id,
	})
	return nil
}

// Subject is capped at the SNS limit of 100 characters.
func Subject(r models.AnalysisResult) string {
	s := "Deal match: " + r.Property.Address
	if len(s) > 100 {
		s = s[:97] + "..."
	}
	return s
}

func Message(r models.AnalysisResult) string {
	p := r.Property
	var b strings.Builder
	fmt.Fprintf(&b, "%s meets your investment criteria (%s).\n\n", p.Address, r.CriteriaName)
	fmt.Fprintf(&b, "Purchase price:   %s\n", money(p.PurchasePrice))
	fmt.Fprintf(&b, "Monthly rent:     %s\n", money(p.MonthlyRent))
	fmt.Fprintf(&b, "Cash needed:      %s\n", money(r.Financing.TotalCashNeeded))
	fmt.Fprintf(&b, "Monthly payment:  %s\n", money(r.Financing.MonthlyPayment))
	fmt.Fprintf(&b, "Monthly cash flow: %s\n", money(r.CashFlow.MonthlyCashFlow))
	fmt.Fprintf(&b, "Cap rate:         %s\n", pct(r.CashFlow.CapRate))
	fmt.Fprintf(&b, "Cash-on-cash:     %s\n", pct(r.CashFlow.CashOnCash))
	if r.Assessment != nil {
		fmt.Fprintf(&b, "\nAssessment: %d/100 (%s) %s\n", r.Assessment.Score, r.Assessment.Verdict, r.Assessment.Summary)
	}
	if p.ListingURL != "" {
		fmt.Fprintf(&b, "\n%s\n", p.ListingURL)
	}
	return b.String()
}

func money(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsNegative() {
		return "-$" + d.Abs().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

func pct(f models.Fraction) string {
	return decimal.NewFromFloat(f.Float64()).Shift(2).StringFixed(2) + "%"
}
