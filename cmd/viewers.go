package cmd

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"strings"
	"text/tabwriter"

	"csv-share-access/internal/audit"
	"csv-share-access/internal/links"
	"csv-share-access/internal/storage"

	"github.com/spf13/cobra"
)

var viewerCmd = &cobra.Command{
	Use:     "viewers",
	Aliases: []string{"devices"},
	Short:   "Manage authorized viewer devices",
	Long:    `Manage devices authorized to view share links, including listing and revoking them.`,
}

var viewerListCmd = &cobra.Command{
	Use:   "list [link_id]",
	Short: "List authorized devices",
	Long:  `List authorized devices of one link, or of every link when no link_id is given.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		linkID := ""
		if len(args) > 0 {
			linkID = args[0]
		}

		devices, err := links.NewController(provider, nil).ListDevices(ctx, linkID)
		if err != nil {
			fatal("Failed to list devices", err)
		}

		if len(devices) == 0 && output != "yaml" {
			fmt.Println("No authorized devices found")
			return
		}

		printRows(devices, "DEVICE ID\tLINK ID\tVIA\tCREATED AT\tLAST USED", func(w *tabwriter.Writer) {
			for _, device := range devices {
				via := "password"
				if device.ApprovedRequestID != nil {
					via = "request " + *device.ApprovedRequestID
				}
				lastUsed := "never"
				if device.LastUsedAt != nil {
					lastUsed = device.LastUsedAt.Format(timeFormat)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					device.ID,
					device.LinkID,
					via,
					device.CreatedAt.Format(timeFormat),
					lastUsed,
				)
			}
		})
	},
}

// getActiveUser returns a string identifying who is performing the action
// Format: username@hostname
func getActiveUser() string {
	username := "unknown"
	if currentUser, err := user.Current(); err == nil {
		username = currentUser.Username
	}

	hostname := "unknown"
	// Check environment variable first for SSH sessions
	if h := os.Getenv("SSH_CLIENT"); h != "" {
		ssh_client := strings.Split(h, " ")
		if len(ssh_client) > 0 {
			hostname = ssh_client[0]
		}
	} else if h, err := os.Hostname(); err == nil {
		hostname = h
	}

	return fmt.Sprintf("%s@%s", username, hostname)
}

// logAction records a command line admin action in the audit log.
func logAction(ctx context.Context, store storage.Provider, action audit.Action, details audit.Details) {
	if details == nil {
		details = audit.Details{}
	}
	details["by"] = getActiveUser()
	details["source"] = "cli"
	audit.NewLogger(store).Log(ctx, action, details, "")
}

var viewerRevokeCmd = &cobra.Command{
	Use:   "revoke <device_id>",
	Short: "Revoke a device's access",
	Long:  `Revoke a device's access to its link. The viewer must log in or request access again.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		deviceID := args[0]

		if err := links.NewController(provider, nil).RevokeDevice(ctx, deviceID); err != nil {
			fatal("Failed to revoke device", err, "device_id", deviceID)
		}
		logAction(ctx, provider, audit.ActionDeviceRevoked, audit.Details{"device_id": deviceID})

		fmt.Printf("Device %s revoked successfully by %s\n", deviceID, getActiveUser())
	},
}

func init() {
	viewerCmd.AddCommand(viewerListCmd)
	viewerCmd.AddCommand(viewerRevokeCmd)
	rootCmd.AddCommand(viewerCmd)
}
