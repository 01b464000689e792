package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("X_TIMEOUT", "90s")
	assert.Equal(t, 90*time.Second, getEnvDuration("X_TIMEOUT", time.Second))

	t.Setenv("X_TIMEOUT", "45")
	assert.Equal(t, 45*time.Second, getEnvDuration("X_TIMEOUT", time.Second))

	t.Setenv("X_TIMEOUT", "soon")
	assert.Equal(t, time.Second, getEnvDuration("X_TIMEOUT", time.Second))
}

func TestLoadEnvConfigProvisioner(t *testing.T) {
	t.Setenv("SUBNET_ID", "subnet-1")
	t.Setenv("SECURITY_GROUP_ID", "sg-1, sg-2,")
	t.Setenv("INSTANCE_PROFILE_NAME", "worker-profile")
	t.Setenv("SCRIPT_REPO", "")
	t.Setenv("SCRIPT_BUCKET_NAME", "worker-scripts")
	t.Setenv("PROVISION_CALL_TIMEOUT", "")

	p := NewProvisionerConfig(LoadEnvConfig())

	assert.Equal(t, []string{"sg-1", "sg-2"}, p.SecurityBinding.SecurityGroupIDs)
	assert.Equal(t, "s3://worker-scripts/ec2_script.sh", p.ScriptRepoLocator)
	assert.Equal(t, "InputEntries", p.ResultTableLocator)
	assert.Equal(t, 20*time.Second, p.CallTimeout)
	assert.Equal(t, "099720109477", p.MatchCriteria.PublisherID)
	require.NoError(t, p.Validate())
}

func TestProvisionerConfigValidate(t *testing.T) {
	t.Setenv("SUBNET_ID", "")
	t.Setenv("SECURITY_GROUP_ID", "sg-1")
	t.Setenv("INSTANCE_PROFILE_NAME", "worker-profile")
	t.Setenv("SCRIPT_REPO", "s3://worker-scripts/ec2_script.sh")

	err := NewProvisionerConfig(LoadEnvConfig()).Validate()
	assert.EqualError(t, err, "subnet id cannot be empty")
}
