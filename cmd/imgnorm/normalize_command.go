package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"image-normalizer/internal/domain"
	"image-normalizer/internal/http-server/handler/image/dto"
	"image-normalizer/internal/usecase/normalizer"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
)

type normalizeFlags struct {
	output      string
	mimeType    string
	payload     bool
	opts        domain.NormalizeOptions
	maxBytesRaw string
}

func newNormalizeCommand(ctx *commandContext) *cobra.Command {
	flags := &normalizeFlags{}

	cmd := &cobra.Command{
		Use:   "normalize <input>",
		Short: "Normalize a local image file",
		Long: "Normalize leaves files within the byte budget untouched. Larger files are scaled so the\n" +
			"long edge fits --max-dimension and re-encoded as JPEG with decreasing quality.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(cmd, ctx, flags, args[0])
		},
	}

	defaults := domain.DefaultNormalizeOptions()
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output path (default <input>.normalized<ext>)")
	cmd.Flags().StringVar(&flags.mimeType, "type", "", "Declared MIME type (default sniffed from content)")
	cmd.Flags().BoolVar(&flags.payload, "payload", false, "Print the {base64String, fileType} payload instead of writing a file")
	cmd.Flags().IntVar(&flags.opts.MaxDimension, "max-dimension", defaults.MaxDimension, "Longest allowed edge in pixels")
	cmd.Flags().Int64Var(&flags.opts.MaxPixels, "max-pixels", defaults.MaxPixels, "Largest source canvas (width*height) that will be decoded")
	cmd.Flags().StringVar(&flags.maxBytesRaw, "max-bytes", humanize.IBytes(uint64(defaults.MaxBytes)), "Byte budget, e.g. 4718592 or \"4.5 MiB\"")
	cmd.Flags().Float64Var(&flags.opts.InitialQuality, "initial-quality", defaults.InitialQuality, "First encoder quality in (0, 1]")
	cmd.Flags().Float64Var(&flags.opts.QualityDecay, "quality-decay", defaults.QualityDecay, "Quality multiplier per iteration in (0, 1)")
	cmd.Flags().IntVar(&flags.opts.MaxIterations, "max-iterations", defaults.MaxIterations, "Upper bound on re-encodes")
	cmd.Flags().Float64Var(&flags.opts.SizeOverheadFactor, "overhead", defaults.SizeOverheadFactor, "Allowed size factor over the byte budget")
	cmd.Flags().StringVar(&flags.opts.Interpolation, "interpolation", defaults.Interpolation, "Resampling kernel: catmullrom or bilinear")

	return cmd
}

func runNormalize(cmd *cobra.Command, ctx *commandContext, flags *normalizeFlags, input string) error {
	if !domain.IsValidInterpolation(flags.opts.Interpolation) {
		return fmt.Errorf("invalid --interpolation %q: want %s or %s",
			flags.opts.Interpolation, domain.InterpolationCatmullRom, domain.InterpolationBiLinear)
	}

	maxBytes, err := humanize.ParseBytes(flags.maxBytesRaw)
	if err != nil {
		return fmt.Errorf("invalid --max-bytes %q: %w", flags.maxBytesRaw, err)
	}
	opts := flags.opts
	opts.MaxBytes = int64(maxBytes)

	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", input, err)
	}

	mimeType := flags.mimeType
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}

	blob := domain.SourceBlob{
		Data:     data,
		MimeType: mimeType,
		Filename: filepath.Base(input),
	}

	n := normalizer.NewNormalizer(nil, domain.DefaultNormalizeOptions(), ctx.logger())
	encoded, err := n.Normalize(cmd.Context(), blob, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flags.payload {
		return writePayload(out, encoded)
	}

	output := flags.output
	if output == "" {
		output = defaultOutputPath(input, encoded.Format)
	}
	if err := os.WriteFile(output, encoded.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}

	printSummary(out, input, blob, output, encoded)
	return nil
}

func writePayload(out io.Writer, encoded *domain.EncodedImage) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(dto.PayloadResponse{
		Base64String: base64.StdEncoding.EncodeToString(encoded.Data),
		FileType:     string(encoded.Format),
	})
}

func defaultOutputPath(input string, format domain.ImageFormat) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + ".normalized" + domain.ExtensionFromFormat(format)
}

func printSummary(out io.Writer, input string, blob domain.SourceBlob, output string, encoded *domain.EncodedImage) {
	fmt.Fprintf(out, "Input:  %s (%s, %s)\n", input, blob.MimeType, humanize.IBytes(uint64(blob.Size())))
	if encoded.PassedThrough {
		fmt.Fprintf(out, "Output: %s (unchanged, within budget)\n", output)
		return
	}
	fmt.Fprintf(out, "Output: %s (%dx%d %s, %s)\n", output, encoded.Width, encoded.Height, encoded.Format, humanize.IBytes(uint64(encoded.Size())))
	fmt.Fprintf(out, "Quality: %.3f after %d iteration(s)\n", encoded.Quality, encoded.Iterations)
}
