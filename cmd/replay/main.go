// Command replay re-invokes downstream functions for objects already in a bucket.
//
// Usage:
//
//	replay --bucket uploads --paths 2024/01/,2024/02/ --functions thumbnail --yes
//	replay --config replay.yaml
//	replay inspect ./checkpoints
package main

import (
	"os"

	"github.com/getpup/pupsourcing-replay/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
