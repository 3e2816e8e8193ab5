package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/internal/app"
	"github.com/Ramsey-B/fern/pkg/credentials"
	"github.com/Ramsey-B/fern/pkg/models"
)

// AssembleOptions holds flags for the assemble command.
type AssembleOptions struct {
	*RootOptions
	Codes        map[string]string
	Required     []string
	Detect       bool
	DocumentName string
	Mappings     []string
	Refresh      bool
	RevealToken  bool
}

// NewAssembleCommand creates the assemble command.
func NewAssembleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AssembleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "assemble <system-name>",
		Short: "Assemble the credential bundle for a sync job",
		Long: `Assemble the credential bundle for a sync job.

Explicit codes take precedence over codes detected from the document name.
Required kinds fail the assembly when their code does not resolve; external
mapping lookups never do.

Example:
  fern assemble payroll-sheets --code provider=adriane_fontenot --require provider \
    --detect --document-name "Adriane Fontenot - March" --mapping provider:emp-1042`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssemble(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringToStringVar(&opts.Codes, "code", nil, "stable code per kind (kind=code), repeatable")
	cmd.Flags().StringSliceVar(&opts.Required, "require", nil, "kinds that must resolve")
	cmd.Flags().BoolVar(&opts.Detect, "detect", false, "detect the entity from the document name")
	cmd.Flags().StringVar(&opts.DocumentName, "document-name", "", "document name used for detection")
	cmd.Flags().StringArrayVar(&opts.Mappings, "mapping", nil, "external mapping to look up (kind:external-id), repeatable")
	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "bypass cached resolutions")
	cmd.Flags().BoolVar(&opts.RevealToken, "reveal-token", false, "include the auth token in the output")

	return cmd
}

func (o *AssembleOptions) options() (credentials.Options, error) {
	out := credentials.Options{
		Codes:        map[models.EntityKind]string{},
		Detect:       o.Detect,
		DocumentName: o.DocumentName,
		Refresh:      o.Refresh,
	}
	for name, code := range o.Codes {
		kind, err := models.ParseEntityKind(name)
		if err != nil {
			return out, err
		}
		out.Codes[kind] = code
	}
	for _, name := range o.Required {
		kind, err := models.ParseEntityKind(name)
		if err != nil {
			return out, err
		}
		out.Required = append(out.Required, kind)
	}
	for _, raw := range o.Mappings {
		name, externalID, ok := strings.Cut(raw, ":")
		if !ok {
			return out, fmt.Errorf("invalid --mapping %q: expected kind:external-id", raw)
		}
		kind, err := models.ParseEntityKind(name)
		if err != nil {
			return out, err
		}
		out.ExternalMappings = append(out.ExternalMappings, credentials.MappingRequest{ExternalID: externalID, EntityType: kind})
	}
	return out, nil
}

func runAssemble(cmd *cobra.Command, opts *AssembleOptions, systemName string) error {
	assembleOpts, err := opts.options()
	if err != nil {
		return err
	}

	return withApp(cmd.Context(), opts.RootOptions, func(ctx context.Context, a *app.App) error {
		bundle, err := a.Assembler.Assemble(ctx, systemName, assembleOpts)
		if err != nil {
			return err
		}

		var value any = bundle
		if opts.RevealToken {
			raw, err := bundle.MarshalJSONWithToken()
			if err != nil {
				return err
			}
			value = json.RawMessage(raw)
		}
		return render(cmd.OutOrStdout(), opts.RootOptions, value, func(w io.Writer) error {
			return writeBundle(w, bundle, opts.RevealToken)
		})
	})
}

func writeBundle(out io.Writer, bundle *models.CredentialBundle, revealToken bool) error {
	w := &bytes.Buffer{}
	token := "[redacted]"
	if revealToken {
		token = bundle.AuthToken()
	}
	fmt.Fprintf(w, "System:         %s\n", bundle.SystemName())
	fmt.Fprintf(w, "Correlation ID: %s\n", bundle.CorrelationID())
	fmt.Fprintf(w, "Base URL:       %s\n", bundle.BaseURL())
	fmt.Fprintf(w, "Auth token:     %s\n", token)

	if detected, ok := bundle.DetectedEntity(); ok {
		fmt.Fprintf(w, "Detected:       %s %s (pattern %q)\n", detected.EntityKind, detected.EntityCode, detected.MatchedPattern)
	}

	fmt.Fprintln(w, "Resolved entities:")
	resolved := bundle.ResolvedEntities()
	for _, kind := range models.EntityKinds {
		if id, ok := resolved[kind]; ok {
			fmt.Fprintf(w, "  %-9s %s\n", kind, id)
		}
	}

	if mappings := bundle.ExternalMappings(); len(mappings) > 0 {
		fmt.Fprintln(w, "External mappings:")
		ids := make([]string, 0, len(mappings))
		for id := range mappings {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(w, "  %s -> %s\n", id, mappings[id])
		}
	}

	_, err := w.WriteTo(out)
	return err
}
