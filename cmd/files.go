package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"csv-share-access/internal/audit"
	"csv-share-access/internal/blob"
	"csv-share-access/internal/crypto"
	"csv-share-access/internal/filestore"

	"github.com/spf13/cobra"
)

func openVault() *filestore.Vault {
	cipher, err := crypto.NewCipher(cfg.EncryptionMasterKey)
	if err != nil {
		fatal("Invalid encryption master key", err)
	}
	blobs, err := blob.NewDiskStore(cfg.Blob.Path)
	if err != nil {
		fatal("Failed to open blob storage", err, "path", cfg.Blob.Path)
	}
	return filestore.NewVault(provider, blobs, cipher)
}

var fileCmd = &cobra.Command{
	Use:   "files",
	Short: "Manage uploaded CSV files",
}

var fileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List uploaded files",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		vault := openVault()

		files, err := vault.List(ctx)
		if err != nil {
			fatal("Failed to list files", err)
		}
		current, err := vault.Current(ctx)
		if err != nil {
			fatal("Failed to resolve current file", err)
		}
		if len(files) == 0 && output != "yaml" {
			fmt.Println("No files uploaded")
			return
		}

		printRows(files, "FILE ID\tFILENAME\tROWS\tCURRENT\tUPLOADED AT", func(w *tabwriter.Writer) {
			for _, f := range files {
				fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%s\n",
					f.ID,
					f.Filename,
					f.RowCount,
					current != nil && current.ID == f.ID,
					f.UploadedAt.Format(timeFormat),
				)
			}
		})
	},
}

var fileActivateCmd = &cobra.Command{
	Use:   "activate <file_id>",
	Short: "Make a file the one links resolve against",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		if err := openVault().SetCurrent(ctx, args[0]); err != nil {
			fatal("Failed to activate file", err, "file_id", args[0])
		}
		logAction(ctx, provider, audit.ActionFileActivated, audit.Details{"file_id": args[0]})
		fmt.Printf("File %s is now current\n", args[0])
	},
}

var fileDeleteCmd = &cobra.Command{
	Use:   "delete <file_id>",
	Short: "Delete a file and its ciphertext",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		if err := openVault().Delete(ctx, args[0]); err != nil {
			fatal("Failed to delete file", err, "file_id", args[0])
		}
		logAction(ctx, provider, audit.ActionFileDeleted, audit.Details{"file_id": args[0]})
		fmt.Printf("File %s deleted\n", args[0])
	},
}

func init() {
	fileCmd.AddCommand(fileListCmd)
	fileCmd.AddCommand(fileActivateCmd)
	fileCmd.AddCommand(fileDeleteCmd)
	rootCmd.AddCommand(fileCmd)
}
