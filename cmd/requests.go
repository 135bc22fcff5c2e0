package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"csv-share-access/internal/audit"
	"csv-share-access/internal/links"
	"csv-share-access/internal/recovery"
	"csv-share-access/internal/storage"

	"github.com/spf13/cobra"
)

func recoveryService() *recovery.Service {
	return recovery.NewService(provider, links.NewController(provider, nil))
}

var requestCmd = &cobra.Command{
	Use:   "requests",
	Short: "Manage access recovery requests",
	Long:  `Manage recovery requests from viewers who lost access, including listing, approving, and denying them.`,
}

var requestListCmd = &cobra.Command{
	Use:   "list [status]",
	Short: "List recovery requests",
	Long:  `List recovery requests by status. Valid statuses: pending, approved, denied, all. Defaults to pending and approved.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		var (
			requests []storage.RecoveryRequest
			err      error
		)
		status := ""
		if len(args) > 0 {
			status = strings.ToLower(args[0])
		}
		switch status {
		case "":
			requests, err = recoveryService().List(ctx)
		case "all":
			requests, err = provider.ListRecoveryRequests(ctx)
		case string(recovery.StatusPending), string(recovery.StatusApproved), string(recovery.StatusDenied):
			requests, err = provider.ListRecoveryRequests(ctx, storage.RequestStatus(status))
		default:
			fmt.Println("Valid statuses: pending, approved, denied, all")
			fatal("Invalid status", fmt.Errorf("unknown status %q", status))
		}
		if err != nil {
			fatal("Failed to list recovery requests", err)
		}

		if len(requests) == 0 && output != "yaml" {
			fmt.Println("No recovery requests found")
			return
		}

		printRows(requests, "REQUEST ID\tLINK ID\tSTATUS\tCREATED AT\tREDEEMED\tMESSAGE", func(w *tabwriter.Writer) {
			for _, req := range requests {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
					req.ID,
					req.LinkID,
					req.Status,
					req.CreatedAt.Format(timeFormat),
					req.ConsumedAt != nil,
					req.Message,
				)
			}
		})
	},
}

var requestApproveCmd = &cobra.Command{
	Use:   "approve <request_id>",
	Short: "Approve a pending recovery request",
	Long:  `Approve a pending recovery request. The requesting device gains access on its next visit.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		req, err := recoveryService().Approve(ctx, args[0])
		if err != nil {
			fatal("Failed to approve request", err, "request_id", args[0])
		}
		logAction(ctx, provider, audit.ActionRecoveryApproved, audit.Details{"request_id": req.ID, "link_id": req.LinkID})

		fmt.Printf("Request %s approved successfully by %s\n", req.ID, getActiveUser())
	},
}

var requestDenyCmd = &cobra.Command{
	Use:   "deny <request_id>",
	Short: "Deny a pending recovery request",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		req, err := recoveryService().Deny(ctx, args[0])
		if err != nil {
			fatal("Failed to deny request", err, "request_id", args[0])
		}
		logAction(ctx, provider, audit.ActionRecoveryDenied, audit.Details{"request_id": req.ID, "link_id": req.LinkID})

		fmt.Printf("Request %s denied successfully by %s\n", req.ID, getActiveUser())
	},
}

func init() {
	requestCmd.AddCommand(requestListCmd)
	requestCmd.AddCommand(requestApproveCmd)
	requestCmd.AddCommand(requestDenyCmd)
	rootCmd.AddCommand(requestCmd)
}
