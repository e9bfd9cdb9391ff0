package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "pixelpipe [sub-command]",
		Short: "Extract an archive of PNG images and write color-transformed copies",
		Long: `pixelpipe extracts a zip archive, scans the extracted tree for PNG images
and writes a transformed copy of every image for each configured transform.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := baseLogger(cmd)
			if err != nil {
				return fmt.Errorf("could not build logger: %w", err)
			}
			slog.SetDefault(logger)
			return nil
		},
		SilenceUsage:      true,
		DisableAutoGenTag: true,
	}

	registerLoggingFlags(root)
	root.AddCommand(newRunCommand(), newTransformsCommand())
	return root
}
