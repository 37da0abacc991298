package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"topicdesk/internal/generator"
	"topicdesk/internal/sources"
)

// NewPreviewCmd creates the cluster preview command
func NewPreviewCmd() *cobra.Command {
	var (
		projectID  string
		userID     string
		profileID  string
		scope      string
		noTrends   bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the clusters generation would use, without writing proposals",
		Long: `Cluster flagged stories and show each cluster with its stories and any
existing proposals that already cover them. Nothing is persisted except the
cluster cache, which preview reads and refreshes.

Examples:
  topicdesk preview --project proj-1 --user user-1
  topicdesk preview --project proj-1 --user user-1 --profile aud-1 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sources.ParseScope(scope, sources.ScopeUser)
			if err != nil {
				return err
			}
			req := generator.PreviewRequest{
				ProjectID:         projectID,
				UserID:            userID,
				AudienceProfileID: profileID,
				Scope:             s,
			}
			if noTrends {
				include := false
				req.IncludeTrends = &include
			}
			return runPreview(cmd.Context(), req, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project ID (required)")
	cmd.Flags().StringVar(&userID, "user", "", "Requesting user ID (required)")
	cmd.Flags().StringVar(&profileID, "profile", "", "Audience profile ID (default: project default)")
	cmd.Flags().StringVar(&scope, "scope", "user", "Flag scope: user or project")
	cmd.Flags().BoolVar(&noTrends, "no-trends", false, "Skip trending context")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the preview as JSON")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runPreview(ctx context.Context, req generator.PreviewRequest, jsonOutput bool) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	preview, err := a.gen.Preview(ctx, req)
	if err != nil {
		return explain(err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(preview)
	}
	fmt.Println(renderPreview(preview))
	return nil
}
