package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/entrhq/switchboard/pkg/app"
	"github.com/entrhq/switchboard/pkg/logging"
)

func newIndexCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Build the document index now and report what was indexed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			embedder, err := app.NewEmbedder(ctx, c.cfg)
			if err != nil {
				return err
			}
			docs, err := app.OpenDocuments(c.cfg, embedder, c.modelTokenizer(), logging.MustLogger("rag"))
			if err != nil {
				return err
			}
			defer func() {
				if err := docs.Close(); err != nil {
					c.logger.Warnf("failed to close document index: %v", err)
				}
			}()

			stats, err := docs.Service.Build(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d files (%d documents, %d chunks) with %s in %s\n",
				stats.Files, stats.Documents, stats.Chunks, embedder.Name(), stats.Duration.Round(time.Millisecond))
			return nil
		},
	}
}
