package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/support-desk/internal/config"
	"github.com/suPer8Hu/support-desk/internal/db"
	"github.com/suPer8Hu/support-desk/internal/escalation"
)

func newEscalationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "escalations",
		Short: "Inspect escalation tickets",
		Long:  `List and acknowledge escalation tickets stored in DB_DSN.`,
	}
	cmd.PersistentFlags().String("dsn", "", "database DSN (default DB_DSN)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List tickets, newest first",
		RunE:  runEscalationsList,
	}
	list.Flags().String("status", "", "open or acknowledged")
	list.Flags().IntP("limit", "n", 20, "maximum tickets to show")

	ack := &cobra.Command{
		Use:   "ack [ticket-id]",
		Short: "Acknowledge an open ticket",
		Args:  cobra.ExactArgs(1),
		RunE:  runEscalationsAck,
	}
	ack.Flags().String("by", "supportctl", "who acknowledged the ticket")

	cmd.AddCommand(list, ack)
	return cmd
}

func openRepo(cmd *cobra.Command) (*escalation.Repo, error) {
	dsn, _ := cmd.Flags().GetString("dsn")
	if dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		dsn = cfg.DBDSN
	}
	if dsn == "" {
		return nil, fmt.Errorf("no database configured: set DB_DSN or --dsn")
	}
	gdb, err := db.Connect(dsn)
	if err != nil {
		return nil, err
	}
	repo := escalation.NewRepo(gdb)
	if err := repo.Migrate(); err != nil {
		return nil, err
	}
	return repo, nil
}

func runEscalationsList(cmd *cobra.Command, _ []string) error {
	repo, err := openRepo(cmd)
	if err != nil {
		return err
	}
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	tickets, err := repo.List(ctx, escalation.Status(status), limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCUSTOMER\tRULE\tSTATUS\tRAISED\tREASON")
	for _, t := range tickets {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.CustomerID, t.Rule, t.Status, t.RaisedAt.Format(time.RFC3339), t.Reason)
	}
	return w.Flush()
}

func runEscalationsAck(cmd *cobra.Command, args []string) error {
	repo, err := openRepo(cmd)
	if err != nil {
		return err
	}
	by, _ := cmd.Flags().GetString("by")

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	t, err := repo.Ack(ctx, args[0], by, time.Now().UTC())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ticket %s acknowledged by %s\n", t.ID, by)
	return nil
}
