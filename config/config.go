package config

import (
	"fmt"
	"time"

	"github.com/tnqbao/gau-compute-dispatcher/entity"
)

type Config struct {
	EnvConfig   *EnvConfig
	Provisioner ProvisionerConfig
}

// ProvisionerConfig is the operator-controlled configuration of the compute
// provisioner. It is fixed at deployment time.
type ProvisionerConfig struct {
	MatchCriteria      entity.ImageCriteria
	InstanceSize       string
	NetworkPlacement   entity.NetworkPlacement
	SecurityBinding    entity.SecurityBinding
	ScriptRepoLocator  string
	ResultTableLocator string
	CallTimeout        time.Duration
}

func NewConfig() *Config {
	env := LoadEnvConfig()
	return &Config{
		EnvConfig:   env,
		Provisioner: NewProvisionerConfig(env),
	}
}

func NewProvisionerConfig(env *EnvConfig) ProvisionerConfig {
	p := env.Provisioner
	return ProvisionerConfig{
		MatchCriteria: entity.ImageCriteria{
			NamePattern:         p.ImageNamePattern,
			Architecture:        p.ImageArchitecture,
			VirtualizationClass: p.ImageVirtualization,
			RootStorageClass:    p.ImageRootDevice,
			PublisherID:         p.ImageOwner,
		},
		InstanceSize:     p.InstanceType,
		NetworkPlacement: entity.NetworkPlacement{SubnetID: p.SubnetID},
		SecurityBinding: entity.SecurityBinding{
			SecurityGroupIDs: p.SecurityGroupIDs,
			InstanceProfile:  p.InstanceProfile,
			KeyName:          p.KeyName,
		},
		ScriptRepoLocator:  p.ScriptRepo,
		ResultTableLocator: p.ResultTable,
		CallTimeout:        p.CallTimeout,
	}
}

// Validate reports the first missing operator setting.
func (c ProvisionerConfig) Validate() error {
	switch {
	case c.MatchCriteria.NamePattern == "" || c.MatchCriteria.PublisherID == "":
		return fmt.Errorf("image name pattern and owner cannot be empty")
	case c.InstanceSize == "":
		return fmt.Errorf("instance type cannot be empty")
	case c.NetworkPlacement.SubnetID == "":
		return fmt.Errorf("subnet id cannot be empty")
	case len(c.SecurityBinding.SecurityGroupIDs) == 0:
		return fmt.Errorf("security group ids cannot be empty")
	case c.SecurityBinding.InstanceProfile == "":
		return fmt.Errorf("instance profile cannot be empty")
	case c.ScriptRepoLocator == "":
		return fmt.Errorf("script repository cannot be empty")
	case c.ResultTableLocator == "":
		return fmt.Errorf("result table cannot be empty")
	case c.CallTimeout <= 0:
		return fmt.Errorf("call timeout must be positive")
	}
	return nil
}
