package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ajitpratap0/wardsim/pkg/xmlutil"
)

// narratorMaxTokens is the maximum tokens Claude can use for the narrative.
const narratorMaxTokens = 600

// Narrator asks Claude for a short operational reading of a report.
//
// On any API failure the Narrator degrades gracefully and returns an empty
// narrative; the rule-based recommendations remain in the report.
type Narrator struct {
	client *anthropic.Client
	model  string
	logger *slog.Logger
}

// NewNarrator creates a Narrator backed by the Anthropic Claude API.
func NewNarrator(apiKey, model string, logger *slog.Logger) *Narrator {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Narrator{
		client: &c,
		model:  model,
		logger: logger,
	}
}

// Narrate returns a few paragraphs interpreting r, or "" when Claude is
// unavailable.
func (n *Narrator) Narrate(ctx context.Context, r Report) (string, error) {
	resp, err := n.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(n.model),
		MaxTokens: narratorMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(r))),
		},
	})
	if err != nil {
		n.logger.Warn("narrator: Claude API call failed, report has no narrative", "error", err)
		return "", nil
	}

	var text string
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			text = strings.TrimSpace(resp.Content[i].Text)
			break
		}
	}
	if text == "" {
		n.logger.Warn("narrator: empty response from Claude")
		return "", nil
	}
	n.logger.Debug("narrator: narrative generated", "chars", len(text))
	return text, nil
}

func buildPrompt(r Report) string {
	s, a := r.Summary, r.Analysis
	sim, drive := r.Mode.Tags()

	metrics := []string{
		fmt.Sprintf("mode=%s/%s simulated=%s", sim, drive, s.Elapsed),
		fmt.Sprintf("moves=%d examinations=%d", s.Moves, s.Examinations),
		fmt.Sprintf("accuracy=%.1f%% settled=%d", s.AccuracyPercent, s.SettledPredicts),
		fmt.Sprintf("time_saved=%s time_lost=%s net=%s", seconds(s.TimeSaved), seconds(s.TimeLost), seconds(s.NetBenefit)),
		fmt.Sprintf("energy_consumed_wh=%.2f saved_wh=%.2f wasted_wh=%.2f", s.EnergyConsumedWh, s.EnergySavedWh, s.EnergyWastedWh),
		fmt.Sprintf("cold_starts=%d wakes=%d preloads=%d used=%d wasted=%d", s.ColdStarts, s.Wakes, s.Preloads, s.PreloadsUsed, s.PreloadsWasted),
	}
	var edges []string
	for i, t := range a.Transitions {
		if i == 10 {
			break
		}
		edges = append(edges, fmt.Sprintf("%s -> %s x%d avg %s", orDash(t.From), t.To, t.Count, seconds(t.AvgEffect)))
	}

	return fmt.Sprintf(`You are an operations analyst for a hospital that pre-activates medical equipment before staff arrive.

Given the run metrics, the most frequent room transitions and the rule-based recommendations, write at most three short paragraphs: what went well, where time or energy was lost, and one concrete tuning change. Plain text, no headings.

%s

%s

%s`,
		xmlutil.Lines("metrics", metrics),
		xmlutil.Lines("transitions", edges),
		xmlutil.Lines("recommendations", r.Recommendations),
	)
}
