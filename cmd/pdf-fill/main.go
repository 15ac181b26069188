// Command pdf-fill inspects and fills PDF forms from the command line,
// without a completion model.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/a3tai/pdf-autofill/internal/config"
	apperrors "github.com/a3tai/pdf-autofill/internal/errors"
	"github.com/a3tai/pdf-autofill/internal/formstate"
	"github.com/a3tai/pdf-autofill/internal/pdf"
	"github.com/a3tai/pdf-autofill/internal/pdf/extraction"
	"github.com/a3tai/pdf-autofill/internal/pdf/fill"
)

// A4 in points, the default signature container
const (
	defaultContainerWidth  = 595
	defaultContainerHeight = 842
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one subcommand and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}

	var err error
	switch args[0] {
	case "extract":
		err = runExtract(ctx, args[1:], stdout, stderr)
	case "export":
		err = runExport(ctx, args[1:], stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n", args[0])
		printUsage(stderr)
		return 2
	}

	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "PDF Fill - inspect and fill PDF forms")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  pdf-fill extract [--format text|json] [--verbose] <file.pdf>")
	fmt.Fprintln(w, "  pdf-fill export --output <out.pdf> [--values values.json] [--set name=value]...")
	fmt.Fprintln(w, "                  [--flatten] [--signature <image|data URL> --sig-x --sig-y")
	fmt.Fprintln(w, "                  --sig-width --sig-height --sig-page] <file.pdf>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "EXAMPLES:")
	fmt.Fprintln(w, "  pdf-fill extract --format json cerfa.pdf")
	fmt.Fprintln(w, "  pdf-fill export -o filled.pdf --set lastname=Durand --set optin=true cerfa.pdf")
	fmt.Fprintln(w, "  pdf-fill export -o signed.pdf --values answers.json --flatten \\")
	fmt.Fprintln(w, "      --signature sig.png --sig-x 50 --sig-y 700 --sig-width 100 --sig-height 40 cerfa.pdf")
}

func newLogger(stderr io.Writer, verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(stderr)
	logger.SetLevel(logrus.WarnLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// readDocument reads one positional PDF argument
func readDocument(fs *pflag.FlagSet) (string, []byte, error) {
	if fs.NArg() != 1 {
		return "", nil, fmt.Errorf("exactly one PDF file path required")
	}
	path := fs.Arg(0)
	data, err := pdf.NewValidator(config.DefaultMaxFileSize).ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	return path, data, nil
}

func runExtract(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("extract", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	format := fs.String("format", "text", "Output format: text, json")
	verbose := fs.Bool("verbose", false, "Enable verbose output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path, data, err := readDocument(fs)
	if err != nil {
		return err
	}

	result, err := extraction.NewExtractor(newLogger(stderr, *verbose)).Extract(ctx, data)
	if err != nil && !errors.Is(err, apperrors.ErrNoExtractableText) {
		return err
	}

	switch *format {
	case "json":
		out, err := json.MarshalIndent(pdf.ExtractFieldsResult{
			Path:      path,
			PageCount: result.PageCount,
			HasText:   result.Text != "",
			Fields:    result.Fields,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, string(out))
	case "text":
		writeFieldTable(stdout, path, result)
	default:
		return fmt.Errorf("unsupported format %q (must be text or json)", *format)
	}
	return nil
}

func writeFieldTable(w io.Writer, path string, result *extraction.Result) {
	textLayer := "no"
	if result.Text != "" {
		textLayer = "yes"
	}
	fmt.Fprintf(w, "File: %s\nPages: %d\nText layer: %s\nFields: %d\n", path, result.PageCount, textLayer, len(result.Fields))
	if len(result.Fields) == 0 {
		return
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tPAGE\tLABEL")
	for _, f := range result.Fields {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", f.Name, f.KindName, f.Page, f.Label())
	}
	tw.Flush()
}

func runExport(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("export", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	output := fs.StringP("output", "o", "", "Output PDF path (required)")
	valuesFile := fs.String("values", "", "JSON file mapping field names to values")
	sets := fs.StringArray("set", nil, "Field value as name=value, repeatable")
	flatten := fs.Bool("flatten", false, "Bake values into the page and remove the form")
	signature := fs.String("signature", "", "Signature image file or base64 data URL")
	sigX := fs.Float64("sig-x", 0, "Signature left edge in the container")
	sigY := fs.Float64("sig-y", 0, "Signature top edge in the container")
	sigW := fs.Float64("sig-width", 0, "Signature width in the container")
	sigH := fs.Float64("sig-height", 0, "Signature height in the container")
	containerW := fs.Float64("container-width", defaultContainerWidth, "Width of the container the signature was placed in")
	containerH := fs.Float64("container-height", defaultContainerHeight, "Height of the container the signature was placed in")
	sigPage := fs.Int("sig-page", 0, "Zero-based page for the signature")
	verbose := fs.Bool("verbose", false, "Enable verbose output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *output == "" {
		return fmt.Errorf("--output is required")
	}
	path, src, err := readDocument(fs)
	if err != nil {
		return err
	}
	if samePath(path, *output) {
		return fmt.Errorf("output must not overwrite the source document")
	}

	logger := newLogger(stderr, *verbose)

	values, err := collectValues(ctx, *valuesFile, *sets, logger)
	if err != nil {
		return err
	}

	var placement *fill.SignaturePlacement
	if *signature != "" {
		img, err := loadSignature(*signature)
		if err != nil {
			return err
		}
		placement = &fill.SignaturePlacement{
			ImageBytes:      img,
			X:               *sigX,
			Y:               *sigY,
			Width:           *sigW,
			Height:          *sigH,
			ContainerWidth:  *containerW,
			ContainerHeight: *containerH,
			PageIndex:       *sigPage,
		}
	}

	out, report, err := fill.NewFiller(logger).Export(ctx, src, values, placement, fill.Options{Flatten: *flatten})
	if err != nil {
		return err
	}

	if dir := filepath.Dir(*output); dir != "" {
		if err := os.MkdirAll(dir, config.DefaultDirPerm); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(*output, out, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	fmt.Fprintf(stdout, "Wrote %s (%d bytes)\n", *output, len(out))
	fmt.Fprintf(stdout, "Applied: %s\n", strings.Join(report.Applied, ", "))
	if len(report.Skipped) > 0 {
		fmt.Fprintf(stdout, "Skipped: %s\n", strings.Join(report.Skipped, ", "))
	}
	for _, w := range report.Warnings {
		fmt.Fprintf(stderr, "Warning: %s: %s\n", w.Field, w.Reason)
	}
	return nil
}

// collectValues merges the values file with --set pairs; --set wins
func collectValues(ctx context.Context, valuesFile string, sets []string, logger *logrus.Logger) (map[string]string, error) {
	store := formstate.NewStore(nil, logger)
	defer store.Close()

	if valuesFile != "" {
		fromFile, err := readValuesFile(valuesFile)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(fromFile))
		for name := range fromFile {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := store.Publish(ctx, name, fromFile[name]); err != nil {
				return nil, err
			}
		}
	}

	for _, pair := range sets {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid --set %q (want name=value)", pair)
		}
		if err := store.Publish(ctx, name, value); err != nil {
			return nil, err
		}
	}

	return store.Snapshot(ctx)
}

// readValuesFile reads a JSON object of scalars. Nulls are dropped.
func readValuesFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read values file: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("values file must be a JSON object: %w", err)
	}

	values := make(map[string]string, len(raw))
	for name, v := range raw {
		switch v := v.(type) {
		case nil:
		case string:
			values[name] = v
		case bool, float64:
			values[name] = fmt.Sprint(v)
		default:
			return nil, fmt.Errorf("value for %q must be a string, number or boolean", name)
		}
	}
	return values, nil
}

// loadSignature accepts a data URL or a path to a PNG or JPEG file
func loadSignature(ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "data:") {
		img, err := fill.DecodeSignatureDataURL(ref)
		if err != nil {
			return nil, fmt.Errorf("invalid signature image: %w", err)
		}
		return img, nil
	}
	img, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read signature image: %w", err)
	}
	return img, nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
