package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tnqbao/gau-compute-dispatcher/config"
)

func main() {
	_ = godotenv.Load("staging.env")

	if err := newRootCmd(config.LoadEnvConfig()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd(env *config.EnvConfig) *cobra.Command {
	root := &cobra.Command{
		Use:           "dispatchctl",
		Short:         "Submit jobs and operate the compute dispatcher",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&env.APIURL, "api-url", env.APIURL, "dispatch API base URL")

	root.AddCommand(
		newSubmitCmd(env),
		newRenderCmd(env),
		newResolveImageCmd(env),
		newReplayCmd(env),
	)
	return root
}
