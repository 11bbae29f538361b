package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "case-api",
	Short: "Background verification case engine",
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(runCmd)
}
