package cli

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/plate-api/internal/frame"
	"github.com/Brownie44l1/plate-api/internal/model"
)

type inferOptions struct {
	RawPath   string
	ImagePath string
	Width     int
	Height    int
}

var inferOpts inferOptions

var inferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Run one frame through the model and print the result",
	Long: `Run one frame through the model.

A raw frame is a planar byte buffer of channels × height × width, as sent by
the camera client. An image file is decoded and converted the same way the
/predict/image endpoint does.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInfer(cmd, inferOpts)
	},
}

func init() {
	inferCmd.Flags().StringVarP(&inferOpts.RawPath, "raw", "r", "", "Path to a raw planar frame")
	inferCmd.Flags().StringVarP(&inferOpts.ImagePath, "image", "i", "", "Path to a JPEG or PNG image")
	inferCmd.Flags().IntVar(&inferOpts.Width, "width", 0, "Frame width (raw frames only)")
	inferCmd.Flags().IntVar(&inferOpts.Height, "height", 0, "Frame height (raw frames only)")
	inferCmd.MarkFlagsMutuallyExclusive("raw", "image")
	inferCmd.MarkFlagsOneRequired("raw", "image")
	rootCmd.AddCommand(inferCmd)
}

func runInfer(cmd *cobra.Command, opts inferOptions) error {
	if opts.RawPath != "" && (opts.Width <= 0 || opts.Height <= 0) {
		return errors.New("--width and --height are required with --raw")
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.adapter.Initialize(cfg.ModelPath); err != nil {
		return err
	}

	var f frame.Frame
	if opts.RawPath != "" {
		data, err := os.ReadFile(opts.RawPath)
		if err != nil {
			return fmt.Errorf("failed to read frame: %w", err)
		}
		f = frame.Frame{Data: data, Width: opts.Width, Height: opts.Height}
	} else {
		f, err = eng.loadImage(opts.ImagePath)
		if err != nil {
			return err
		}
	}

	result, err := eng.adapter.Infer(f.Data, f.Width, f.Height)
	if err != nil {
		return fmt.Errorf("%s: %w", model.Code(err), err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), result)
	return nil
}

// loadImage decodes an image file into a frame sized for the model.
func (e *engine) loadImage(path string) (frame.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return frame.Frame{}, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("%s: %w", path, err)
	}

	size := uint(e.meta.ImageSize)
	return frame.FromImage(frame.Resize(img, size, size), e.adapter.Channels())
}
