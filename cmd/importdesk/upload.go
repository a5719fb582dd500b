package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kadrsp/importdesk"
	"github.com/spf13/cobra"
)

// uploadCmd groups the two upload forms.
var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a spreadsheet to the backend",
	Long: `Upload a teachers or curriculum spreadsheet without opening the page.

Status messages are printed as the page would show them.`,
}

var uploadTeachersCmd = &cobra.Command{
	Use:   "teachers",
	Short: "Import teachers and wait for them to appear",
	Long: `Submit a teachers import and poll the backend until the imported
records appear or the attempt budget runs out.

Example:
  importdesk upload teachers -c config.yaml -f staff.xlsx`,
	RunE: runUploadTeachers,
}

var uploadCurriculumCmd = &cobra.Command{
	Use:   "curriculum",
	Short: "Upload a curriculum workbook (.xlsx)",
	Long: `Submit a curriculum workbook and print the number of imported records.

Example:
  importdesk upload curriculum -c config.yaml -f plan.xlsx`,
	RunE: runUploadCurriculum,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.AddCommand(uploadTeachersCmd, uploadCurriculumCmd)

	for _, c := range []*cobra.Command{uploadTeachersCmd, uploadCurriculumCmd} {
		c.Flags().StringP("config", "c", "", "path to config file (required)")
		c.Flags().StringP("file", "f", "", "spreadsheet to upload (required)")
		_ = c.MarkFlagRequired("config")
		_ = c.MarkFlagRequired("file")
	}
}

// printBanners echoes every banner to out.
func printBanners(out io.Writer) importdesk.Option {
	return importdesk.WithBannerCallback(func(b importdesk.Banner) {
		fmt.Fprintf(out, "[%s] %s\n", b.Kind, b.Message)
	})
}

// openSelected opens the --file argument as a selected file.
func openSelected(cmd *cobra.Command) (importdesk.File, func(), error) {
	path, _ := cmd.Flags().GetString("file")
	f, err := os.Open(path)
	if err != nil {
		return importdesk.File{}, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return importdesk.File{Name: filepath.Base(path), Content: f}, func() { _ = f.Close() }, nil
}

func runUploadTeachers(cmd *cobra.Command, args []string) error {
	desk, _, err := loadDesk(cmd, newLogger(), printBanners(cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	defer desk.Close()

	file, closeFile, err := openSelected(cmd)
	if err != nil {
		return err
	}
	defer closeFile()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := desk.UploadTeachers(ctx, file)
	if err != nil {
		return fmt.Errorf("teachers upload failed: %w", err)
	}

	switch res.Outcome {
	case importdesk.PollSucceeded:
		fmt.Fprintf(cmd.OutOrStdout(), "%d teachers after %d attempt(s)\n", len(res.Records), len(res.Attempts))
		return nil
	case importdesk.PollCanceled:
		return ctx.Err()
	default:
		return fmt.Errorf("teachers did not appear after %d attempts", len(res.Attempts))
	}
}

func runUploadCurriculum(cmd *cobra.Command, args []string) error {
	// no table to refresh from the command line
	desk, _, err := loadDesk(cmd, newLogger(),
		printBanners(cmd.OutOrStdout()),
		importdesk.WithCurriculumRefresh(nil),
	)
	if err != nil {
		return err
	}
	defer desk.Close()

	file, closeFile, err := openSelected(cmd)
	if err != nil {
		return err
	}
	defer closeFile()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := desk.UploadCurriculum(ctx, file); err != nil {
		return fmt.Errorf("curriculum upload failed: %w", err)
	}
	return nil
}
