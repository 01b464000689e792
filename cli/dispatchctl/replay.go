package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tnqbao/gau-compute-dispatcher/config"
	"github.com/tnqbao/gau-compute-dispatcher/infra"
)

func newReplayCmd(env *config.EnvConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <job-id>",
		Short: "Dispatch a stored job again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, err := infra.InitUploadService(env).ReplayJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %s re-enqueued as event %s\n", args[0], eventID)
			return nil
		},
	}
}
