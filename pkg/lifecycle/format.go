package lifecycle

import (
	"fmt"
	"strings"

	"github.com/givance/webserver-sub009/internal/util"
	"github.com/givance/webserver-sub009/pkg/journey"
)

const maxMessageRunes = 800

func formatDonor(d DonorInfo) string {
	return fmt.Sprintf("- id: %s\n- name: %s\n- email: %s", d.ID, orNone(d.Name), orNone(d.Email))
}

func formatStage(s journey.Stage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- id: %s | label: %s | %s", s.ID, s.Label, s.Properties.Description)
	if len(s.Properties.Actions) > 0 {
		fmt.Fprintf(&b, " | typical actions: %s", strings.Join(s.Properties.Actions, "; "))
	}
	return b.String()
}

func formatStages(g *journey.Graph) string {
	if g == nil || len(g.Nodes) == 0 {
		return "(no stages)"
	}
	lines := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		lines = append(lines, formatStage(n))
	}
	return strings.Join(lines, "\n")
}

func formatTransitions(idx *journey.Index, edges []journey.Transition) string {
	if len(edges) == 0 {
		return "(none, this is a final stage)"
	}
	lines := make([]string, 0, len(edges))
	for _, e := range edges {
		target := e.Target
		if s, ok := idx.Stage(e.Target); ok {
			target = fmt.Sprintf("%s (%s)", e.Target, s.Label)
		}
		lines = append(lines, fmt.Sprintf("- %s: to stage %s | %s", e.Label, target, e.Properties.Description))
	}
	return strings.Join(lines, "\n")
}

func formatCommunications(threads []CommunicationThread) string {
	if len(threads) == 0 {
		return "(no communication yet)"
	}
	var b strings.Builder
	for i, t := range threads {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "### %s thread started %s\n", orNone(t.Channel), t.CreatedAt.Format("2006-01-02"))
		for _, m := range t.Messages {
			who := "organization"
			if m.FromDonor {
				who = "donor"
			}
			content := util.Truncate(strings.TrimSpace(m.Content), maxMessageRunes)
			fmt.Fprintf(&b, "- [%s] %s: %s\n", m.CreatedAt.Format("2006-01-02"), who, content)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatDonations(donations []Donation) string {
	if len(donations) == 0 {
		return "(no donations yet)"
	}
	lines := make([]string, 0, len(donations))
	for _, d := range donations {
		line := fmt.Sprintf("- %s: %s", d.Date.Format("2006-01-02"), formatAmount(d.AmountCents, d.Currency))
		if d.ProjectName != "" {
			line += " for " + d.ProjectName
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatAmount(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	if currency == "" {
		currency = "USD"
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, strings.ToUpper(currency))
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(unknown)"
	}
	return s
}
