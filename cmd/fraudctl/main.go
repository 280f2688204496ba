// Command fraudctl scores content offline and inspects scoring and
// fingerprint artefacts without a running API.
package main

import (
	"fmt"
	"os"

	"github.com/richxcame/trustx/pkg/logger"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fraudctl",
		Short:         "Offline tooling for the TrustX fraud scorer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newScoreCmd(), newWeightsCmd(), newFingerprintCmd())
	return root
}

func main() {
	os.Exit(run())
}

func run() int {
	if err := logger.Init(os.Getenv("ENVIRONMENT")); err != nil {
		fmt.Fprintf(os.Stderr, "fraudctl: init logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fraudctl: %v\n", err)
		return 1
	}
	return 0
}
