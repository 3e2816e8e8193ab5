package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/internal/app"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/invoker"
	"github.com/Ramsey-B/fern/pkg/models"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Refresh bool
}

type resolveOutput struct {
	EntityType string `json:"entity_type"`
	Code       string `json:"code"`
	Found      bool   `json:"found"`
	EntityID   string `json:"entity_id,omitempty"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <clinic|provider|location> <code>",
		Short: "Resolve one stable code to its current entity id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := models.ParseEntityKind(args[0])
			if err != nil {
				return err
			}
			return runResolve(cmd, opts, kind, args[1])
		},
	}

	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "bypass the cache (the fresh result is still cached)")

	return cmd
}

func runResolve(cmd *cobra.Command, opts *ResolveOptions, kind models.EntityKind, code string) error {
	return withApp(cmd.Context(), opts.RootOptions, func(ctx context.Context, a *app.App) error {
		r, ok := a.Resolvers.For(kind)
		if !ok {
			return fernerrors.NewConfigurationError("no resolver configured for %s codes", kind)
		}

		var callOpts []invoker.CallOption
		if opts.Refresh {
			callOpts = append(callOpts, invoker.SkipCacheRead())
		}
		id, found, err := r.Resolve(ctx, code, callOpts...)
		if err != nil {
			return err
		}

		out := resolveOutput{EntityType: string(kind), Code: code, Found: found, EntityID: id}
		return render(cmd.OutOrStdout(), opts.RootOptions, out, func(w io.Writer) error {
			if !found {
				_, err := fmt.Fprintf(w, "%s code %q did not resolve\n", kind, code)
				return err
			}
			_, err := fmt.Fprintf(w, "%s %s -> %s\n", kind, code, id)
			return err
		})
	})
}
