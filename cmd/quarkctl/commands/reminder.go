package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/quark-run/quark/internal/identity"
	"github.com/spf13/cobra"
)

var reminderCmd = &cobra.Command{
	Use:   "reminder",
	Short: "Inspect and manage durable reminders",
}

var (
	reminderActorType string
	reminderActorID   string
	reminderName      string
	reminderDelay     time.Duration
	reminderPeriod    time.Duration
	reminderPayload   string
)

var reminderRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a durable reminder for an actor",
	RunE:  runReminderRegister,
}

var reminderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reminders registered for an actor",
	RunE:  runReminderList,
}

var reminderUnregisterCmd = &cobra.Command{
	Use:   "unregister",
	Short: "Remove a reminder from an actor",
	RunE:  runReminderUnregister,
}

func init() {
	for _, cmd := range []*cobra.Command{reminderRegisterCmd, reminderListCmd, reminderUnregisterCmd} {
		cmd.Flags().StringVar(&reminderActorType, "actor-type", "", "Actor type (required)")
		cmd.Flags().StringVar(&reminderActorID, "actor-id", "", "Actor id (required)")
		cmd.MarkFlagRequired("actor-type")
		cmd.MarkFlagRequired("actor-id")
	}

	for _, cmd := range []*cobra.Command{reminderRegisterCmd, reminderUnregisterCmd} {
		cmd.Flags().StringVar(&reminderName, "name", "", "Reminder name (required)")
		cmd.MarkFlagRequired("name")
	}

	reminderRegisterCmd.Flags().DurationVar(&reminderDelay, "delay", time.Minute,
		"Delay from now until the reminder first fires")
	reminderRegisterCmd.Flags().DurationVar(&reminderPeriod, "period", 0,
		"Repeat period (0 means one-shot)")
	reminderRegisterCmd.Flags().StringVar(&reminderPayload, "payload", "",
		"Opaque payload delivered with the reminder")

	reminderCmd.AddCommand(reminderRegisterCmd)
	reminderCmd.AddCommand(reminderListCmd)
	reminderCmd.AddCommand(reminderUnregisterCmd)
}

func runReminderRegister(cmd *cobra.Command, args []string) error {
	queries, closeDB, err := openQueries()
	if err != nil {
		return err
	}
	defer closeDB()

	key, err := actorKey(reminderActorType, reminderActorID)
	if err != nil {
		return err
	}

	now := time.Now()
	due := now.Add(reminderDelay)

	ctx := context.Background()
	err = queries.Register(ctx, key, reminderName, due, reminderPeriod,
		[]byte(reminderPayload), now)
	if err != nil {
		return fmt.Errorf("register reminder: %w", err)
	}

	fmt.Printf("Registered reminder %q for %s due at %s\n",
		reminderName, key, due.Format(time.RFC3339))
	return nil
}

func runReminderList(cmd *cobra.Command, args []string) error {
	queries, closeDB, err := openQueries()
	if err != nil {
		return err
	}
	defer closeDB()

	key, err := actorKey(reminderActorType, reminderActorID)
	if err != nil {
		return err
	}

	reminders, err := queries.ListByActor(context.Background(), key)
	if err != nil {
		return fmt.Errorf("list reminders: %w", err)
	}

	if len(reminders) == 0 {
		fmt.Printf("No reminders registered for %s\n", key)
		return nil
	}

	for _, r := range reminders {
		period := "one-shot"
		if !r.IsOneShot() {
			period = r.Period.String()
		}
		fmt.Printf("%-20s next=%-25s period=%s\n",
			r.Name, r.NextFireTime.Format(time.RFC3339), period)
	}
	return nil
}

func runReminderUnregister(cmd *cobra.Command, args []string) error {
	queries, closeDB, err := openQueries()
	if err != nil {
		return err
	}
	defer closeDB()

	key, err := actorKey(reminderActorType, reminderActorID)
	if err != nil {
		return err
	}

	if err := queries.Unregister(context.Background(), key, reminderName); err != nil {
		return fmt.Errorf("unregister reminder: %w", err)
	}

	fmt.Printf("Unregistered reminder %q for %s\n", reminderName, key)
	return nil
}

func actorKey(actorType, actorID string) (identity.Key, error) {
	t, err := identity.NewActorType(actorType)
	if err != nil {
		return identity.Key{}, err
	}
	id, err := identity.NewActorID(actorID)
	if err != nil {
		return identity.Key{}, err
	}
	return identity.Key{Type: t, ID: id}, nil
}
