package cli

import (
	"io"

	"github.com/kagent-dev/agentcheck/internal/config"
	"github.com/kagent-dev/agentcheck/internal/version"
)

func VersionCmd(w io.Writer, cfg *config.Config) error {
	info := version.Get()
	return printOutput(w, cfg.OutputFormat, info,
		[]string{"Version", "Git Commit", "Build Date", "Go Version", "Platform"},
		[][]string{{info.Version, info.GitCommit, info.BuildDate, info.GoVersion, info.Platform}})
}
