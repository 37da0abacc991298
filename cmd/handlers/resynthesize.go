package handlers

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"topicdesk/internal/render"
)

// NewResynthesizeCmd creates the command that regenerates an existing proposal
func NewResynthesizeCmd() *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "resynthesize <proposal-id>",
		Short: "Regenerate a proposal's content from its stored cluster",
		Long: `Regenerate the title, hook, talking points and citations of an existing
proposal. Its stories, theme, trigger and creator are kept, and new citations are
merged with the existing ones.

Examples:
  topicdesk resynthesize 3f2a9c1e-5b8d-4d0e-9f57-0a1b2c3d4e5f
  topicdesk resynthesize 3f2a9c1e-5b8d-4d0e-9f57-0a1b2c3d4e5f --output briefs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResynthesize(cmd.Context(), args[0], outputDir)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Write the updated brief to this directory")
	return cmd
}

func runResynthesize(ctx context.Context, proposalID, outputDir string) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.gen.Resynthesize(ctx, proposalID)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", okStyle.Render("✓"), titleStyle.Render(p.Title))
	fmt.Printf("  %d talking points, %d citations\n", len(p.TalkingPoints), len(p.Citations))
	if outputDir != "" {
		path, err := render.WriteBriefToFile(render.Brief(p), outputDir, render.Filename(p))
		if err != nil {
			return err
		}
		fmt.Printf("  brief: %s\n", path)
	}
	return nil
}
