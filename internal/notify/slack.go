package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/dispute_triage/backend/internal/models"
)

type Noop struct{}

func (Noop) NotifyCritical(context.Context, models.DisputeCase, models.RiskAnalysis) error { return nil }

// Slack posts escalated cases to the ops channel.
type Slack struct {
	API     *slack.Client
	Channel string
}

// NewSlack builds a client for token. apiURL overrides the Slack endpoint and
// must end with "/api/".
func NewSlack(token, channel, apiURL string) *Slack {
	opts := []slack.Option{}
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return &Slack{API: slack.New(token, opts...), Channel: channel}
}

func (s *Slack) NotifyCritical(ctx context.Context, c models.DisputeCase, a models.RiskAnalysis) error {
	text := CriticalText(c, a)
	_, _, err := s.API.PostMessageContext(ctx, s.Channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
		),
	)
	if err != nil {
		return fmt.Errorf("slack post to %s: %w", s.Channel, err)
	}
	return nil
}

// CriticalText renders the escalation message for a case.
func CriticalText(c models.DisputeCase, a models.RiskAnalysis) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, ":rotating_light: *CRITICAL dispute #%d* ($%.2f, %s)\n", c.ID, c.Amount, c.MerchantCategory)
	fmt.Fprintf(b, "*%s* / risk %s / %s\n", a.Classification, a.RiskScore, a.RecommendedAction)
	if a.Summary != "" {
		fmt.Fprintf(b, "> %s\n", a.Summary)
	}
	if c.AssignedOpsName != "" {
		fmt.Fprintf(b, "Assigned to %s", c.AssignedOpsName)
	} else {
		b.WriteString("Unassigned")
	}
	return b.String()
}
