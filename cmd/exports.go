/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/booklend/apiserver/config"
	"github.com/booklend/apiserver/internal/storage"
	"github.com/spf13/cobra"
)

// exportsCmd represents the exports command group.
var exportsCmd = &cobra.Command{
	Use:   "exports",
	Short: "Work with archived history exports",
	Long: `Retrieves or removes history exports previously archived in object
storage. Requires STORAGE_BACKEND to be set to minio or gcs. Keys look
like "history-exports/<uuid>.csv" and are logged when the archive
stores a copy.`,
}

var exportsFetchCmd = &cobra.Command{
	Use:   "fetch <key>",
	Short: "Write an archived export to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		archive, err := openArchive(cmd)
		if err != nil {
			return err
		}

		object, err := archive.Open(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("fetch %s failed: %w", args[0], err)
		}
		defer object.Close()

		_, err = io.Copy(os.Stdout, object)
		return err
	},
}

var exportsRmCmd = &cobra.Command{
	Use:   "rm <key>",
	Short: "Remove an archived export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		archive, err := openArchive(cmd)
		if err != nil {
			return err
		}

		if err := archive.Delete(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("remove %s failed: %w", args[0], err)
		}
		fmt.Printf("removed %s from bucket %s\n", args[0], archive.Bucket())
		return nil
	},
}

func openArchive(cmd *cobra.Command) (*storage.ExportArchive, error) {
	cfg := config.LoadConfig()
	archive, err := storage.NewExportArchiveFromConfig(cmd.Context(), cfg.Storage)
	if err != nil {
		return nil, err
	}
	if archive == nil {
		return nil, errors.New("STORAGE_BACKEND is not configured")
	}
	return archive, nil
}

func init() {
	rootCmd.AddCommand(exportsCmd)
	exportsCmd.AddCommand(exportsFetchCmd)
	exportsCmd.AddCommand(exportsRmCmd)
}
