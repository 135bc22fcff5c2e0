package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"csv-share-access/internal/audit"
	"csv-share-access/internal/links"

	"github.com/spf13/cobra"
)

var linkCmd = &cobra.Command{
	Use:   "links",
	Short: "Manage share links",
}

var linkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List share links",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		all, err := links.NewController(provider, nil).ListLinks(ctx)
		if err != nil {
			fatal("Failed to list links", err)
		}
		if len(all) == 0 && output != "yaml" {
			fmt.Println("No links found")
			return
		}

		printRows(all, "LINK ID\tNAME\tACTIVE\tPASSWORD USED\tCRITERIA\tCREATED AT", func(w *tabwriter.Writer) {
			for _, link := range all {
				used := "no"
				if link.PasswordUsedAt != nil {
					used = link.PasswordUsedAt.Format(timeFormat)
				}
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%d\t%s\n",
					link.ID,
					link.Name,
					link.Active,
					used,
					len(link.Criteria.V),
					link.CreatedAt.Format(timeFormat),
				)
			}
		})
	},
}

func setLinkActive(active bool) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		linkID := args[0]

		if err := links.NewController(provider, nil).SetActive(ctx, linkID, active); err != nil {
			fatal("Failed to update link", err, "link_id", linkID)
		}
		logAction(ctx, provider, audit.ActionLinkUpdated, audit.Details{"link_id": linkID, "active": active})

		state := "disabled"
		if active {
			state = "enabled"
		}
		fmt.Printf("Link %s %s\n", linkID, state)
	}
}

var linkEnableCmd = &cobra.Command{
	Use:   "enable <link_id>",
	Short: "Enable a share link",
	Args:  cobra.ExactArgs(1),
	Run:   setLinkActive(true),
}

var linkDisableCmd = &cobra.Command{
	Use:   "disable <link_id>",
	Short: "Disable a share link",
	Long:  `Disable a share link. Authorized devices keep their tokens but cannot view the link until it is enabled again.`,
	Args:  cobra.ExactArgs(1),
	Run:   setLinkActive(false),
}

var linkDeleteCmd = &cobra.Command{
	Use:   "delete <link_id>",
	Short: "Delete a share link with its devices and requests",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		linkID := args[0]

		if err := links.NewController(provider, nil).DeleteLink(ctx, linkID); err != nil {
			fatal("Failed to delete link", err, "link_id", linkID)
		}
		logAction(ctx, provider, audit.ActionLinkDeleted, audit.Details{"link_id": linkID})
		fmt.Printf("Link %s deleted\n", linkID)
	},
}

func init() {
	linkCmd.AddCommand(linkListCmd)
	linkCmd.AddCommand(linkEnableCmd)
	linkCmd.AddCommand(linkDisableCmd)
	linkCmd.AddCommand(linkDeleteCmd)
	rootCmd.AddCommand(linkCmd)
}
