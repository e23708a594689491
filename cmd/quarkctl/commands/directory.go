package commands

import (
	"context"
	"fmt"

	"github.com/quark-run/quark/internal/directory"
	"github.com/quark-run/quark/internal/identity"
	"github.com/spf13/cobra"
)

var directoryCmd = &cobra.Command{
	Use:   "directory",
	Short: "Inspect the cluster placement directory",
}

var (
	directoryActorType string
	directoryActorID   string
	directorySiloID    string
)

var directoryGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show which silo owns a given actor",
	RunE:  runDirectoryGet,
}

var directoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every directory entry owned by a silo",
	RunE:  runDirectoryList,
}

func init() {
	directoryGetCmd.Flags().StringVar(&directoryActorType, "actor-type", "", "Actor type (required)")
	directoryGetCmd.Flags().StringVar(&directoryActorID, "actor-id", "", "Actor id (required)")
	directoryGetCmd.MarkFlagRequired("actor-type")
	directoryGetCmd.MarkFlagRequired("actor-id")

	directoryListCmd.Flags().StringVar(&directorySiloID, "silo", "", "Silo id (required)")
	directoryListCmd.MarkFlagRequired("silo")

	directoryCmd.AddCommand(directoryGetCmd)
	directoryCmd.AddCommand(directoryListCmd)
}

func runDirectoryGet(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openDirectoryStore()
	if err != nil {
		return err
	}
	defer closeDB()

	key, err := actorKey(directoryActorType, directoryActorID)
	if err != nil {
		return err
	}

	dirStore := directory.NewSQLiteStore(store)
	entry, err := dirStore.Get(context.Background(), key)
	if err != nil {
		return fmt.Errorf("look up directory entry: %w", err)
	}

	fmt.Printf("%s -> silo=%s version=%d\n", key, entry.Silo, entry.Version)
	return nil
}

func runDirectoryList(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openDirectoryStore()
	if err != nil {
		return err
	}
	defer closeDB()

	dirStore := directory.NewSQLiteStore(store)
	silo, err := identity.NewSiloID(directorySiloID)
	if err != nil {
		return err
	}

	entries, err := dirStore.ListBySilo(context.Background(), silo)
	if err != nil {
		return fmt.Errorf("list directory entries: %w", err)
	}

	if len(entries) == 0 {
		fmt.Printf("No directory entries owned by %s\n", silo)
		return nil
	}

	for _, e := range entries {
		fmt.Printf("%-40s version=%d\n", e.Key, e.Version)
	}
	return nil
}
