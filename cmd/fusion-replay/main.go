// Command fusion-replay runs recorded modality samples through the fusion engine offline and
// prints one fused result per sample.
package main

import (
	"os"

	"github.com/pscheid92/emofusion/internal/platform/logging"
)

func main() {
	logging.InitLogger("info", "text")

	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
