package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/internal/app"
	"github.com/Ramsey-B/fern/pkg/models"
)

// MappingOptions holds flags for the mapping commands.
type MappingOptions struct {
	*RootOptions
	Notes string
}

// NewMappingCommand creates the mapping command group.
func NewMappingCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MappingOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Manage the external mapping registry",
	}

	upsert := &cobra.Command{
		Use:   "upsert <system-name> <clinic|provider|location> <external-id> <entity-id>",
		Short: "Create or replace a mapping",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseEntityKind(args[1])
			if err != nil {
				return err
			}
			mapping := models.ExternalMapping{
				SystemName: args[0],
				ExternalID: args[2],
				EntityType: kind,
				EntityID:   args[3],
			}
			if opts.Notes != "" {
				mapping.Notes = &opts.Notes
			}
			return withApp(cmd.Context(), opts.RootOptions, func(ctx context.Context, a *app.App) error {
				if err := a.Registry.Upsert(ctx, mapping); err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), opts.RootOptions, mapping, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "Mapped %s %s %s -> %s\n", mapping.SystemName, kind, mapping.ExternalID, mapping.EntityID)
					return err
				})
			})
		},
	}
	upsert.Flags().StringVar(&opts.Notes, "notes", "", "free-form notes stored with the mapping")

	lookup := &cobra.Command{
		Use:   "lookup <system-name> <clinic|provider|location> <external-id>",
		Short: "Look up the entity bound to an external id",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseEntityKind(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), opts.RootOptions, func(ctx context.Context, a *app.App) error {
				id, found, err := a.Registry.Lookup(ctx, args[0], args[2], kind)
				if err != nil {
					return err
				}
				out := map[string]any{"found": found, "entity_id": id}
				return render(cmd.OutOrStdout(), opts.RootOptions, out, func(w io.Writer) error {
					if !found {
						_, err := fmt.Fprintf(w, "No %s mapping for %s\n", kind, args[2])
						return err
					}
					_, err := fmt.Fprintln(w, id)
					return err
				})
			})
		},
	}

	list := &cobra.Command{
		Use:   "list <system-name>",
		Short: "List every mapping of a system",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts.RootOptions, func(ctx context.Context, a *app.App) error {
				mappings, err := a.Registry.List(ctx, args[0])
				if err != nil {
					return err
				}
				if mappings == nil {
					mappings = []models.ExternalMapping{}
				}
				return render(cmd.OutOrStdout(), opts.RootOptions, mappings, func(w io.Writer) error {
					return writeMappings(w, mappings)
				})
			})
		},
	}

	cmd.AddCommand(upsert, lookup, list)
	return cmd
}

func writeMappings(w io.Writer, mappings []models.ExternalMapping) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY TYPE\tEXTERNAL ID\tENTITY ID")
	for _, m := range mappings {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.EntityType, m.ExternalID, m.EntityID)
	}
	return tw.Flush()
}
