// Package render formats topic proposals as production briefs.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"topicdesk/internal/citations"
	"topicdesk/internal/core"
)

// DefaultOutputDir is used when no output directory is given
const DefaultOutputDir = "briefs"

// Brief renders a proposal as a markdown production brief.
func Brief(p *core.TopicProposal) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", p.Title))
	sb.WriteString(fmt.Sprintf("*%s · %s · %s · %s*\n\n",
		p.Status, p.DurationType, formatDuration(p.DurationSeconds), p.GenerationTrigger))

	if p.Hook != "" {
		sb.WriteString("## Hook\n\n")
		sb.WriteString("> " + p.Hook + "\n\n")
	}

	if p.AudienceCare != "" {
		sb.WriteString("## Why the audience cares\n\n")
		sb.WriteString(p.AudienceCare + "\n\n")
	}

	if len(p.TalkingPoints) > 0 {
		sb.WriteString("## Talking points\n\n")
		total := 0
		for i, tp := range p.TalkingPoints {
			sb.WriteString(fmt.Sprintf("%d. **%s** (%s)", i+1, tp.Point, formatDuration(tp.DurationSeconds)))
			if tp.Detail != "" {
				sb.WriteString(" " + tp.Detail)
			}
			sb.WriteString("\n")
			total += tp.DurationSeconds
		}
		sb.WriteString(fmt.Sprintf("\nPlanned runtime: %s of %s target\n\n", formatDuration(total), formatDuration(p.DurationSeconds)))
	}

	if len(p.Citations) > 0 {
		sb.WriteString("## Research\n\n")
		for i, c := range p.Citations {
			title := c.Title
			if title == "" {
				title = c.URL
			}
			sb.WriteString(fmt.Sprintf("- [%s](%s) *%s*", title, c.URL, strings.ReplaceAll(string(c.SourceType), "_", " ")))
			if publisher := citations.Publisher(c.URL); publisher != "" {
				sb.WriteString(", " + publisher)
			}
			if c.Snippet != "" {
				sb.WriteString(": " + c.Snippet)
			}
			sb.WriteString(fmt.Sprintf(" [^%d]\n", i+1))
		}
		sb.WriteString("\n")
		for i, c := range p.Citations {
			sb.WriteString(fmt.Sprintf("[^%d]: %s\n", i+1, c.URL))
		}
		sb.WriteString("\n")
	}

	if p.TrendingContext != "" {
		sb.WriteString("## Trending context\n\n```\n")
		sb.WriteString(strings.TrimSpace(p.TrendingContext))
		sb.WriteString("\n```\n\n")
	}

	sb.WriteString("---\n\n")
	sb.WriteString(fmt.Sprintf("Cluster: %s", p.ClusterTheme))
	if len(p.ClusterKeywords) > 0 {
		sb.WriteString(" (" + strings.Join(p.ClusterKeywords, ", ") + ")")
	}
	sb.WriteString(fmt.Sprintf("  \nSource stories: %s  \n", strings.Join(p.SourceStoryIDs, ", ")))
	if !p.CreatedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Generated: %s\n", p.CreatedAt.UTC().Format(time.RFC1123)))
	}
	if p.ReviewNotes != "" {
		sb.WriteString(fmt.Sprintf("\n**Review notes:** %s\n", p.ReviewNotes))
	}

	return sb.String()
}

// HTML converts markdown to HTML, opening links in a new tab.
func HTML(text string) string {
	if text == "" {
		return ""
	}

	mdParser := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs | parser.Footnotes)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank,
	})
	return string(markdown.ToHTML([]byte(text), mdParser, renderer))
}

// Filename returns the default brief filename for a proposal
func Filename(p *core.TopicProposal) string {
	date := p.CreatedAt.UTC().Format("2006-01-02")
	id := p.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("brief_%s_%s.md", date, id)
}

// WriteBriefToFile writes content to filename inside outputDir, creating the directory.
func WriteBriefToFile(content, outputDir, filename string) (string, error) {
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	filePath := filepath.Join(outputDir, filename)
	if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write brief file %s: %w", filePath, err)
	}
	return filePath, nil
}

func formatDuration(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds%60 == 0 {
		return fmt.Sprintf("%dm", seconds/60)
	}
	return fmt.Sprintf("%dm%02ds", seconds/60, seconds%60)
}
