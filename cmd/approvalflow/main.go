package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmarkov/approvalflow/internal/cli"
)

var rootCmd = &cobra.Command{Use: "approvalflow"}

func main() {
	cli.SetupCLI(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
