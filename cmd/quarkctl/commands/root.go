package commands

import (
	"github.com/spf13/cobra"
)

var (
	// dbPath is the path to the silo's SQLite state database.
	dbPath string

	// membershipPath is the path to the silo's bbolt membership store.
	membershipPath string
)

// rootCmd is the base command for the operator CLI.
var rootCmd = &cobra.Command{
	Use:   "quarkctl",
	Short: "Operator CLI for a quarksilo process",
	Long: `quarkctl inspects and administers a quarksilo's on-disk state:
registering and listing reminders, inspecting directory placement entries,
and probing cluster membership.

It operates directly on the same SQLite and bbolt files a running quarksilo
uses. The reminder and directory commands work alongside (or independently
of) a live silo. The membership commands need the bbolt file's lock, which a
running silo holds, so against a live silo they fail after a 5s timeout.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&dbPath, "db", "",
		"Path to the silo's SQLite state database (default: ~/.quark/quark.db)",
	)
	rootCmd.PersistentFlags().StringVar(
		&membershipPath, "membership-db", "~/.quark/membership.db",
		"Path to the silo's bbolt membership store",
	)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(reminderCmd)
	rootCmd.AddCommand(directoryCmd)
	rootCmd.AddCommand(membershipCmd)
}
