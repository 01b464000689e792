package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tnqbao/gau-compute-dispatcher/config"
	"github.com/tnqbao/gau-compute-dispatcher/provision"
)

func newRenderCmd(env *config.EnvConfig) *cobra.Command {
	var (
		jobID    string
		text     string
		artifact string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the bootstrap script a worker would receive",
		RunE: func(cmd *cobra.Command, args []string) error {
			locator, err := provision.CanonicalArtifactLocator(artifact)
			if err != nil {
				return err
			}
			generator, err := provision.NewGenerator(env.Provisioner.ScriptRepo)
			if err != nil {
				return err
			}
			script, err := generator.Render(jobID, text, locator, env.Provisioner.ResultTable)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), script)
			return nil
		},
	}

	cmd.Flags().StringVar(&jobID, "job-id", "preview", "job id")
	cmd.Flags().StringVar(&text, "text", "", "job text input")
	cmd.Flags().StringVar(&artifact, "artifact", "", "artifact reference, including the .Input marker")
	cmd.Flags().StringVar(&env.Provisioner.ScriptRepo, "script-repo", env.Provisioner.ScriptRepo, "processing script location (s3:// or https://)")
	cmd.Flags().StringVar(&env.Provisioner.ResultTable, "table", env.Provisioner.ResultTable, "result table")
	_ = cmd.MarkFlagRequired("artifact")
	return cmd
}
