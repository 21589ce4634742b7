package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/guildboard/guildboard/boardservice"
)

var rootCmd = &cobra.Command{
	Use:   "guildboard",
	Short: "Guild dashboard service: timers, ledger panels and reminders",
	RunE: func(cmd *cobra.Command, args []string) error {
		return boardservice.Run()
	},
}

func main() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the service (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return boardservice.Run()
		},
	}
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
