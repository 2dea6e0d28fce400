package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Brownie44l1/plate-api/internal/log"
	"github.com/Brownie44l1/plate-api/internal/model"
)

var batchDir string

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run every image in a directory through the model",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, batchDir)
	},
}

func init() {
	batchCmd.Flags().StringVarP(&batchDir, "dir", "d", "", "Directory of JPEG/PNG frames")
	batchCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(batchCmd)
}

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func runBatch(cmd *cobra.Command, dir string) error {
	paths, err := listImages(dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no images found in %s", dir)
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.adapter.Initialize(cfg.ModelPath); err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("Processing frames"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	out := cmd.OutOrStdout()
	failed := 0
	for _, path := range paths {
		if err := cmd.Context().Err(); err != nil {
			return err
		}

		result, err := eng.inferImage(path)
		bar.Add(1)
		if err != nil {
			failed++
			log.Warn("frame failed", "file", path, "code", model.Code(err), "err", err)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\n", filepath.Base(path), result)
	}
	bar.Finish()

	fmt.Fprintf(os.Stderr, "\nProcessed %d frames, %d failed.\n", len(paths), failed)
	if failed == len(paths) {
		return fmt.Errorf("all %d frames failed", failed)
	}
	return nil
}

func (e *engine) inferImage(path string) (string, error) {
	f, err := e.loadImage(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}
	return e.adapter.Infer(f.Data, f.Width, f.Height)
}
