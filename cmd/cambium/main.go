package main

import (
	"os"

	"github.com/cambium-dev/cambium/cmd"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	rootCmd.AddCommand(cmd.NewConvertCommand())
	rootCmd.AddCommand(cmd.NewPlanCommand())
	rootCmd.AddCommand(cmd.NewListCommand())
	rootCmd.AddCommand(cmd.NewRunCommand())
	rootCmd.AddCommand(cmd.NewVersionCommand())
	rootCmd.AddCommand(cmd.NewManpageCommand(rootCmd))

	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrln("Error:", err)
		os.Exit(cmd.ExitCode(err))
	}
}
