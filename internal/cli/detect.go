package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/internal/app"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
)

// DetectOptions holds flags for the detect command.
type DetectOptions struct {
	*RootOptions
	Headers []string
}

type detectOutput struct {
	Detected     bool             `json:"detected"`
	EntityCode   string           `json:"entity_code,omitempty"`
	EntityKind   string           `json:"entity_kind,omitempty"`
	Pattern      string           `json:"matched_pattern,omitempty"`
	ColumnGroups map[string][]int `json:"column_groups,omitempty"`
}

// NewDetectCommand creates the detect command.
func NewDetectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DetectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "detect <document-name>",
		Short: "Match a document name against the detection rules",
		Long: `Match a document name against the detection rules (DETECTION_RULES_PATH).
With --headers the header row is also split into column groups.

Example:
  fern detect "Adriane Fontenot - March" --headers "Main St,Riverside,Total"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts.RootOptions, func(ctx context.Context, a *app.App) error {
				if a.Detector == nil {
					return fernerrors.NewConfigurationError("no detection rules configured (set DETECTION_RULES_PATH)")
				}

				out := detectOutput{}
				if result, ok := a.Detector.Detect(ctx, args[0]); ok {
					out.Detected = true
					out.EntityCode = result.EntityCode
					out.EntityKind = string(result.EntityKind)
					out.Pattern = result.MatchedPattern
				}
				if len(opts.Headers) > 0 {
					out.ColumnGroups = a.Detector.DetectColumnGroups(opts.Headers)
				}

				return render(cmd.OutOrStdout(), opts.RootOptions, out, func(w io.Writer) error {
					return writeDetection(w, out)
				})
			})
		},
	}

	cmd.Flags().StringSliceVar(&opts.Headers, "headers", nil, "header row to classify into column groups")

	return cmd
}

func writeDetection(dst io.Writer, out detectOutput) error {
	w := &bytes.Buffer{}
	if out.Detected {
		fmt.Fprintf(w, "Detected %s %s (pattern %q)\n", out.EntityKind, out.EntityCode, out.Pattern)
	} else {
		fmt.Fprintln(w, "No entity detected")
	}

	keys := make([]string, 0, len(out.ColumnGroups))
	for key := range out.ColumnGroups {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(w, "  %s: %v\n", key, out.ColumnGroups[key])
	}
	_, err := w.WriteTo(dst)
	return err
}
