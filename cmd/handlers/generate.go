package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"topicdesk/internal/core"
	"topicdesk/internal/generator"
	"topicdesk/internal/render"
	"topicdesk/internal/sources"
)

type generateOptions struct {
	projectID       string
	userID          string
	profileID       string
	durationType    string
	durationSeconds int
	regions         []string
	noTrends        bool
	scope           string
	clusters        []int
	maxProposals    int
	outputDir       string
	jsonOutput      bool
}

// NewGenerateCmd creates the manual generation command
func NewGenerateCmd() *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate topic proposals from flagged stories",
		Long: `Cluster a user's flagged stories and generate one proposal per cluster.

Clustering always runs fresh. A cluster whose synthesis or storage fails is
reported and skipped; the command fails only when every cluster failed.

Examples:
  # Generate from your own flags with the project defaults
  topicdesk generate --project proj-1 --user user-1

  # Medium video for a specific audience, comparing with Canada
  topicdesk generate --project proj-1 --user user-1 --profile aud-1 \
    --duration medium --regions Canada

  # Only the first and third suggested clusters, from every member's flags
  topicdesk generate --project proj-1 --user user-1 --scope project --clusters 0,2

  # Write markdown briefs to ./briefs
  topicdesk generate --project proj-1 --user user-1 --output briefs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.projectID, "project", "", "Project ID (required)")
	cmd.Flags().StringVar(&opts.userID, "user", "", "Requesting user ID (required)")
	cmd.Flags().StringVar(&opts.profileID, "profile", "", "Audience profile ID (default: project default)")
	cmd.Flags().StringVar(&opts.durationType, "duration", "", "Duration type: short, medium or long")
	cmd.Flags().IntVar(&opts.durationSeconds, "seconds", 0, "Target length in seconds (default: duration type default)")
	cmd.Flags().StringSliceVar(&opts.regions, "regions", nil, "Comparison regions")
	cmd.Flags().BoolVar(&opts.noTrends, "no-trends", false, "Skip trending context")
	cmd.Flags().StringVar(&opts.scope, "scope", "user", "Flag scope: user or project")
	cmd.Flags().IntSliceVar(&opts.clusters, "clusters", nil, "Zero-based cluster indices to process")
	cmd.Flags().IntVar(&opts.maxProposals, "max", 0, "Maximum proposals (default: project setting)")
	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", "", "Write a markdown brief per proposal to this directory")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the result as JSON")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runGenerate(ctx context.Context, opts generateOptions) error {
	scope, err := sources.ParseScope(opts.scope, sources.ScopeUser)
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	req := generator.ManualRequest{
		ProjectID:         opts.projectID,
		UserID:            opts.userID,
		AudienceProfileID: opts.profileID,
		DurationType:      core.DurationType(strings.ToLower(opts.durationType)),
		DurationSeconds:   opts.durationSeconds,
		ComparisonRegions: opts.regions,
		Scope:             scope,
		ClusterIndices:    opts.clusters,
		MaxProposals:      opts.maxProposals,
	}
	if opts.noTrends {
		include := false
		req.IncludeTrends = &include
	}

	result, err := a.gen.Generate(ctx, req)
	if err != nil {
		return explain(err)
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Println(renderOutcome(result))
	if opts.outputDir != "" {
		for i := range result.Proposals {
			p := &result.Proposals[i]
			path, err := render.WriteBriefToFile(render.Brief(p), opts.outputDir, render.Filename(p))
			if err != nil {
				return err
			}
			fmt.Printf("  brief: %s\n", path)
		}
	}
	return nil
}

// explain adds a hint to errors a user can act on
func explain(err error) error {
	switch core.KindOf(err) {
	case core.KindInsufficientInput:
		return fmt.Errorf("%w\n\nFlag more stories, widen the project's time window or use --scope project", err)
	case core.KindNoClusters:
		return fmt.Errorf("%w\n\nThe flagged stories did not form any theme; try again after flagging related stories", err)
	}
	return err
}
