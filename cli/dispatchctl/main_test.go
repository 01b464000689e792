package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tnqbao/gau-compute-dispatcher/config"
)

func runCmd(t *testing.T, env *config.EnvConfig, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(env)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRenderCommand(t *testing.T) {
	env := &config.EnvConfig{}
	env.Provisioner.ScriptRepo = "s3://scripts/ec2_script.sh"
	env.Provisioner.ResultTable = "InputEntries"

	out, err := runCmd(t, env, "render", "--job-id", "job-7", "--text", "it's fine", "--artifact", "bucket/a.bin.Input")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "#!/bin/bash\n"))
	assert.Contains(t, out, `'job-7' 'it'\''s fine' 'bucket/a.bin' 'InputEntries'`)
}

func TestRenderCommandRejectsBadArtifact(t *testing.T) {
	env := &config.EnvConfig{}
	env.Provisioner.ScriptRepo = "s3://scripts/ec2_script.sh"

	_, err := runCmd(t, env, "render", "--text", "x", "--artifact", "bucket/a.bin")
	assert.Error(t, err)
}

func TestSubmitValidatesText(t *testing.T) {
	_, err := runCmd(t, &config.EnvConfig{APIURL: "http://localhost:1"}, "submit", "--file", "missing.bin", "--text", "hi")
	assert.Error(t, err)
}

func TestReplayRequiresJobID(t *testing.T) {
	_, err := runCmd(t, &config.EnvConfig{APIURL: "http://localhost:1"}, "replay")
	assert.Error(t, err)
}

func TestResolveImageReturnsAWSConfigError(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "aws")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	t.Setenv("AWS_CONFIG_FILE", empty)
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", empty)
	t.Setenv("AWS_PROFILE", "dispatchctl-missing-profile")

	env := &config.EnvConfig{}
	env.AWS.Region = "us-east-1"

	var err error
	assert.NotPanics(t, func() {
		_, err = runCmd(t, env, "resolve-image")
	})
	assert.ErrorContains(t, err, "failed to load AWS config")
}
