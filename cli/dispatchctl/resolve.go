package main

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/spf13/cobra"

	"github.com/tnqbao/gau-compute-dispatcher/config"
	"github.com/tnqbao/gau-compute-dispatcher/infra"
	"github.com/tnqbao/gau-compute-dispatcher/provision"
)

func newResolveImageCmd(env *config.EnvConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve-image",
		Short: "Resolve the machine image workers would launch from",
		RunE: func(cmd *cobra.Command, args []string) error {
			awsCfg, err := infra.LoadAWSConfig(cmd.Context(), env, env.AWS.Region)
			if err != nil {
				return err
			}
			criteria := config.NewProvisionerConfig(env).MatchCriteria
			resolver := provision.NewResolver(infra.NewEC2Client(ec2.NewFromConfig(awsCfg)))

			image, err := resolver.Resolve(cmd.Context(), criteria)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", image.ID, image.CreatedAt.Format(time.RFC3339))
			return nil
		},
	}
}
