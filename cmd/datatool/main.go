// Command datatool prepares and checks the data the server loads: the symptom
// list, the base64 model artifact and the reference tables.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "datatool",
		Short:         "Offline data preparation for the symptom checker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		newExtractSymptomsCmd(),
		newEncodeArtifactCmd(),
		newCheckCmd(),
		newPredictCmd(),
		newLoadDBCmd(),
	)
	return cmd
}
