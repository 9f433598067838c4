// Command transcodectl is the process entrypoint for the mobile transcode
// engine: it wires a SessionScheduler to a pipeline-backed TranscoderControl
// and exposes an operator HTTP surface.
package main

import (
	"os"

	"github.com/livepeer/transcode-engine/cmd/transcodectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
