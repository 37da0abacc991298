package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"topicdesk/internal/generator"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// renderSummary formats a scheduled run for the terminal
func renderSummary(s *generator.RunSummary) string {
	var sb strings.Builder

	header := fmt.Sprintf("Scheduled run %s", s.StartedAt.Format("2006-01-02 15:04 MST"))
	stats := fmt.Sprintf("%d checked · %d run · %d proposals · %s",
		s.ProjectsChecked, s.ProjectsRun, s.TotalProposals, s.Elapsed.Round(time.Millisecond))
	sb.WriteString(boxStyle.Render(titleStyle.Render(header) + "\n" + dimStyle.Render(stats)))
	sb.WriteString("\n")

	for _, r := range s.Results {
		switch {
		case r.Error != "":
			sb.WriteString(fmt.Sprintf("%s %s %s\n", errStyle.Render("✗"), r.ProjectID, errStyle.Render(r.Error)))
		case r.Skipped:
			sb.WriteString(fmt.Sprintf("%s %s %s\n", dimStyle.Render("-"), r.ProjectID, dimStyle.Render(r.Reason)))
		default:
			line := fmt.Sprintf("%s %s %d proposals", okStyle.Render("✓"), r.ProjectID, r.ProposalsGenerated)
			if r.FromCache {
				line += dimStyle.Render(" (cached clusters)")
			}
			sb.WriteString(line + "\n")
		}
		for _, f := range r.Failures {
			sb.WriteString(fmt.Sprintf("    %s cluster %d %q failed at %s: %s\n",
				warnStyle.Render("!"), f.Index, f.Theme, f.Stage, f.Error))
		}
		for _, w := range r.Warnings {
			sb.WriteString(dimStyle.Render(fmt.Sprintf("    note: %q %s", w.Theme, w.Warning)))
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// renderOutcome formats a manual generation for the terminal
func renderOutcome(r *generator.Result) string {
	var sb strings.Builder
	out := r.Outcome
	if out == nil {
		out = &generator.Outcome{}
	}

	sb.WriteString(titleStyle.Render(fmt.Sprintf("%d proposals", len(r.Proposals))))
	sb.WriteString(dimStyle.Render(fmt.Sprintf(" from %d clusters (%d processed)", out.ClustersFound, out.ClustersProcessed)))
	sb.WriteString("\n")

	for _, p := range r.Proposals {
		sb.WriteString(fmt.Sprintf("%s %s\n", okStyle.Render("✓"), titleStyle.Render(p.Title)))
		sb.WriteString(dimStyle.Render(fmt.Sprintf("    %s · %s · %d citations · %s", p.ClusterTheme, p.DurationType, len(p.Citations), p.ID)))
		sb.WriteString("\n")
	}
	for _, f := range out.Failures {
		sb.WriteString(fmt.Sprintf("%s cluster %d %q failed at %s: %s\n", warnStyle.Render("!"), f.Index, f.Theme, f.Stage, f.Error))
	}
	for _, w := range out.Warnings {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("    note: %q %s", w.Theme, w.Warning)))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// renderPreview formats a cluster preview for the terminal
func renderPreview(p *generator.Preview) string {
	var sb strings.Builder

	source := "fresh"
	if p.FromCache {
		source = "cached"
	}
	sb.WriteString(titleStyle.Render(fmt.Sprintf("%d clusters from %d stories", len(p.Clusters), p.ItemCount)))
	sb.WriteString(dimStyle.Render(" (" + source + ")"))
	sb.WriteString("\n")

	for _, c := range p.Clusters {
		sb.WriteString(fmt.Sprintf("\n[%d] %s %s\n", c.Index, titleStyle.Render(c.Cluster.Theme),
			dimStyle.Render(fmt.Sprintf("relevance %.0f · %s", c.Cluster.RelevanceScore, strings.Join(c.Cluster.Keywords, ", ")))))
		for _, item := range c.Items {
			sb.WriteString(fmt.Sprintf("    • %s\n", item.Title))
		}
		for _, s := range c.Similar {
			sb.WriteString(warnStyle.Render(fmt.Sprintf("    ! overlaps %.0f%% with %q (%s)", s.OverlapPercentage, s.Title, s.Status)))
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
