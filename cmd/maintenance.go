package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"csv-share-access/internal/audit"
	"csv-share-access/internal/cleanup"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired sessions, old audit logs and resolved requests",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		result, err := cleanup.NewJanitor(provider, cfg.Retention).Run(ctx)
		if err != nil {
			fatal("Cleanup failed", err)
		}
		printRows(result, "KIND\tREMOVED", func(w *tabwriter.Writer) {
			fmt.Fprintf(w, "admin sessions\t%d\n", result.AdminSessions)
			fmt.Fprintf(w, "audit logs\t%d\n", result.AuditLogs)
			fmt.Fprintf(w, "recovery requests\t%d\n", result.RecoveryRequests)
		})
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the admin session",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		if err := provider.DeleteAdminSessions(ctx); err != nil {
			fatal("Failed to clear admin sessions", err)
		}
		logAction(ctx, provider, audit.ActionAdminLogout, nil)
		fmt.Println("Admin session cleared")
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent audit log entries",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := provider.ListAuditEntries(ctx, limit)
		if err != nil {
			fatal("Failed to list audit log", err)
		}
		printRows(entries, "TIME\tACTION\tDETAILS", func(w *tabwriter.Writer) {
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%v\n", e.CreatedAt.Format(timeFormat), e.Action, e.Details.V)
			}
		})
	},
}

var vapidCmd = &cobra.Command{
	Use:   "vapid",
	Short: "Generate a VAPID key pair for push notifications",
	Args:  cobra.NoArgs,
	// Needs neither configuration nor storage.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		private, public, err := webpush.GenerateVAPIDKeys()
		if err != nil {
			fatal("Failed to generate VAPID keys", err)
		}
		fmt.Printf("PUSH_VAPID_PUBLIC_KEY=%s\nPUSH_VAPID_PRIVATE_KEY=%s\n", public, private)
	},
}

func init() {
	auditCmd.Flags().IntP("limit", "n", 50, "Number of entries to show")

	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(vapidCmd)
}
