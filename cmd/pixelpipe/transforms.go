package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meigma/pixelpipe/transform"
)

func newTransformsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transforms",
		Short: "List the available transforms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range transform.Names() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
