// agentty is the control-plane CLI for running many autonomous
// coding-agent sessions in parallel against a single git repository.
package main

import (
	"os"

	"github.com/agentty-run/agentty/internal/cmd"
	"github.com/agentty-run/agentty/internal/logging"
)

func main() {
	logging.Init(os.Stderr)
	os.Exit(cmd.Execute())
}
