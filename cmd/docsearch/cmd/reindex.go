package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docsearch/internal/model"
)

func newReindexCmd() *cobra.Command {
	var tenant, kind string
	var changed []string

	cmd := &cobra.Command{
		Use:   "reindex [artifact-id]",
		Short: "Manually trigger a reindex pass for one artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if tenant == "" {
				return fmt.Errorf("--tenant is required")
			}

			eventKind := model.EventUpdated
			switch kind {
			case "created":
				eventKind = model.EventCreated
			case "updated":
				eventKind = model.EventUpdated
			case "deleted":
				eventKind = model.EventDeleted
			default:
				return fmt.Errorf("--kind must be one of created|updated|deleted")
			}

			ctx := c.Context()
			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			a.Reindex.Submit(model.Event{
				Kind:          eventKind,
				ArtifactID:    args[0],
				TenantID:      tenant,
				ChangedFields: changed,
				EmittedAt:     time.Now(),
			})

			if !a.Reindex.WaitIdle(tenant, args[0], 30*time.Second) {
				return fmt.Errorf("reindex of %s did not finish within 30s", args[0])
			}
			if err := a.SaveVectorIndexes(); err != nil {
				return err
			}

			fmt.Printf("reindexed artifact %s (%s)\n", args[0], kind)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID (required)")
	cmd.Flags().StringVar(&kind, "kind", "updated", "event kind: created|updated|deleted")
	cmd.Flags().StringSliceVar(&changed, "changed", nil, "changed field names, narrows the reindex work performed")
	return cmd
}
