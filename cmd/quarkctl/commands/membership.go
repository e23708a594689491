package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var membershipCmd = &cobra.Command{
	Use:   "membership",
	Short: "Inspect cluster membership",
}

var membershipProbeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Force a membership scan and print every silo's derived status",
	RunE:  runMembershipProbe,
}

func init() {
	membershipCmd.AddCommand(membershipProbeCmd)
}

func runMembershipProbe(cmd *cobra.Command, args []string) error {
	store, err := openMembershipStore()
	if err != nil {
		return err
	}
	defer store.Close()

	silos, err := store.Scan(context.Background())
	if err != nil {
		return fmt.Errorf("scan membership store: %w", err)
	}

	if len(silos) == 0 {
		fmt.Println("No silos observed")
		return nil
	}

	now := time.Now()
	for _, silo := range silos {
		fmt.Printf("%-24s addr=%-24s status=%-8s last_heartbeat=%s\n",
			silo.SiloID, silo.Address, silo.StatusAt(now),
			silo.LastHeartbeat.Format(time.RFC3339))
	}
	return nil
}
