package provision

import (
	"fmt"
	"strings"

	"github.com/tnqbao/gau-compute-dispatcher/entity"
)

const (
	// MaxUserDataBytes is the compute API limit on the raw bootstrap payload.
	MaxUserDataBytes = 16 * 1024

	WorkerHome       = "/home/ubuntu"
	WorkerScriptPath = WorkerHome + "/ec2_script.sh"

	awsCLIURL   = "https://awscli.amazonaws.com/awscli-exe-linux-x86_64.zip"
	ssmAgentURL = "https://s3.amazonaws.com/ec2-downloads-windows/SSMAgent/latest/debian_amd64/amazon-ssm-agent.deb"
)

// Generator renders the startup script a fresh worker runs on first boot.
// The processing script is always fetched from the operator-controlled
// repository; job values only ever appear as quoted arguments to it.
type Generator struct {
	scriptRepo string
	scriptPath string
}

func NewGenerator(scriptRepo string) (*Generator, error) {
	if scriptRepo == "" {
		return nil, fmt.Errorf("script repository cannot be empty")
	}
	if !strings.HasPrefix(scriptRepo, "s3://") && !strings.HasPrefix(scriptRepo, "https://") {
		return nil, fmt.Errorf("script repository must be an s3:// or https:// location: %s", scriptRepo)
	}
	return &Generator{scriptRepo: scriptRepo, scriptPath: WorkerScriptPath}, nil
}

// Render produces the bootstrap script for one job. It refuses to render when
// any value cannot be embedded as a shell literal.
func (g *Generator) Render(jobID, textInput, artifactLocator, resultTableLocator string) (string, error) {
	fetch, err := g.fetchCommand()
	if err != nil {
		return "", err
	}
	invoke, err := Invocation(g.scriptPath, jobID, textInput, artifactLocator, resultTableLocator)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	b.WriteString("set -euo pipefail\n\n")
	b.WriteString("export DEBIAN_FRONTEND=noninteractive\n")
	b.WriteString("apt-get update\n")
	b.WriteString("apt-get install -y unzip curl\n\n")
	b.WriteString("cd " + WorkerHome + "\n\n")
	b.WriteString("curl -sSfL " + awsCLIURL + " -o awscliv2.zip\n")
	b.WriteString("unzip -q -o awscliv2.zip\n")
	b.WriteString("./aws/install --update\n\n")
	b.WriteString("curl -sSfL " + ssmAgentURL + " -o amazon-ssm-agent.deb\n")
	b.WriteString("dpkg -i amazon-ssm-agent.deb\n\n")
	b.WriteString(fetch + "\n")
	b.WriteString("chmod +x " + g.scriptPath + "\n")
	b.WriteString(invoke + "\n")

	script := b.String()
	if len(script) > MaxUserDataBytes {
		return "", fmt.Errorf("%w: %d bytes", entity.ErrBootstrapTooLarge, len(script))
	}
	return script, nil
}

func (g *Generator) fetchCommand() (string, error) {
	src, err := ShellQuote(g.scriptRepo)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(g.scriptRepo, "s3://") {
		return "aws s3 cp " + src + " " + g.scriptPath, nil
	}
	return "curl -sSfL " + src + " -o " + g.scriptPath, nil
}

// Invocation builds a single command line running program with args, each
// argument quoted as one inert word.
func Invocation(program string, args ...string) (string, error) {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, program)
	for i, arg := range args {
		q, err := ShellQuote(arg)
		if err != nil {
			return "", fmt.Errorf("argument %d: %w", i+1, err)
		}
		parts = append(parts, q)
	}
	return strings.Join(parts, " "), nil
}

// ShellQuote wraps s in single quotes so a POSIX shell reads it back as exactly
// one word equal to s. Embedded single quotes become '\''. Values containing
// NUL cannot be passed as arguments and are rejected; the result is parsed
// back and compared before it is returned.
func ShellQuote(s string) (string, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return "", fmt.Errorf("%w: contains NUL byte", entity.ErrUnsafeScriptValue)
	}
	quoted := "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	if back, ok := unquote(quoted); !ok || back != s {
		return "", fmt.Errorf("%w: quoting self-check failed", entity.ErrUnsafeScriptValue)
	}
	return quoted, nil
}

// unquote reads a word made only of single-quoted segments and \' escapes.
// Anything else is rejected.
func unquote(word string) (string, bool) {
	var b strings.Builder
	for i := 0; i < len(word); {
		switch word[i] {
		case '\'':
			end := strings.IndexByte(word[i+1:], '\'')
			if end < 0 {
				return "", false
			}
			b.WriteString(word[i+1 : i+1+end])
			i += end + 2
		case '\\':
			if i+1 >= len(word) || word[i+1] != '\'' {
				return "", false
			}
			b.WriteByte('\'')
			i += 2
		default:
			return "", false
		}
	}
	return b.String(), true
}
