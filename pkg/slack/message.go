package slack

import (
	"fmt"

	goslack "github.com/slack-go/slack"
)

const maxBlockTextLength = 2900

var guardianStatusEmoji = map[string]string{
	"proposed": ":large_orange_diamond:",
	"approved": ":white_check_mark:",
	"rejected": ":x:",
	"executed": ":gear:",
	"reverted": ":leftwards_arrow_with_hook:",
}

var guardianStatusLabel = map[string]string{
	"proposed": "Guardian action awaiting approval",
	"approved": "Guardian action approved",
	"rejected": "Guardian action rejected",
	"executed": "Guardian action executed",
	"reverted": "Guardian action reverted",
}

func agentURL(agentID, dashboardURL string) string {
	if dashboardURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/agents/%s", dashboardURL, agentID)
}

// BuildGuardianActionMessage creates Block Kit blocks notifying a human
// reviewer that the Guardian has proposed (or resolved) a corrective action
// against an agent that requires authority beyond its own.
func BuildGuardianActionMessage(input GuardianActionInput, dashboardURL string) []goslack.Block {
	emoji := guardianStatusEmoji[input.Status]
	if emoji == "" {
		emoji = ":question:"
	}
	label := guardianStatusLabel[input.Status]
	if label == "" {
		label = "Guardian action " + input.Status
	}

	headerText := fmt.Sprintf("%s *%s*\n*Agent:* `%s`\n*Action:* `%s` (authority level %d)",
		emoji, label, input.AgentID, input.ActionType, input.AuthorityLevel)
	if input.Reason != "" {
		headerText += fmt.Sprintf("\n*Reason:* %s", truncateForSlack(input.Reason))
	}

	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, headerText, false, false),
			nil, nil,
		),
	}

	if url := agentURL(input.AgentID, dashboardURL); url != "" {
		btn := goslack.NewButtonBlockElement("", "", goslack.NewTextBlockObject(goslack.PlainTextType, "View Agent", false, false))
		btn.URL = url
		blocks = append(blocks, goslack.NewActionBlock("", btn))
	}

	return blocks
}

// BuildBudgetAlertMessage creates Block Kit blocks for a budget threshold or
// exhaustion notification.
func BuildBudgetAlertMessage(input BudgetAlertInput) []goslack.Block {
	emoji := ":rotating_light:"
	label := "Budget threshold crossed"
	if input.Exceeded {
		emoji = ":no_entry:"
		label = "Budget exceeded — new spend is being rejected"
	}

	pctSpent := 0.0
	if input.LimitUSD > 0 {
		pctSpent = 100 * (input.SpentUSD + input.ReservedUSD) / input.LimitUSD
	}

	text := fmt.Sprintf("%s *%s*\n*Scope:* `%s/%s`\n*Spent:* $%.2f  *Reserved:* $%.2f  *Limit:* $%.2f  (%.0f%%)",
		emoji, label, input.ScopeType, input.ScopeID, input.SpentUSD, input.ReservedUSD, input.LimitUSD, pctSpent)

	return []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
			nil, nil,
		),
	}
}

func truncateForSlack(text string) string {
	if len(text) <= maxBlockTextLength {
		return text
	}
	return text[:maxBlockTextLength] + "\n\n_... (truncated — view full detail in dashboard)_"
}
