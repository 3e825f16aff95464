package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/spacemeshos/go-peerdid/delta"
	"github.com/spacemeshos/go-peerdid/document"
	"github.com/spacemeshos/go-peerdid/repo"
)

// readInput reads a file, or stdin for "-" or no argument.
func readInput(c *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(c.InOrStdin())
	}
	return os.ReadFile(args[0])
}

func withRepo(a *app, fn func(r *repo.Repository) error) error {
	r, err := a.openRepo()
	if err != nil {
		return err
	}
	defer r.Close()
	return fn(r)
}

func newCreateCommand(a *app) *cobra.Command {
	var by []string
	c := &cobra.Command{
		Use:   "new [file|-]",
		Short: "create a document from a genesis change (JSON or base64 JSON)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			data, err := readInput(c, args)
			if err != nil {
				return err
			}
			return withRepo(a, func(r *repo.Repository) error {
				id, err := r.CreateDocument(c.Context(), delta.Text(string(data)), by...)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.OutOrStdout(), id)
				return nil
			})
		},
	}
	c.Flags().StringArrayVar(&by, "by", nil, "endorsement, may be repeated")
	return c
}

func newAppendCommand(a *app) *cobra.Command {
	var by []string
	c := &cobra.Command{
		Use:   "append <did> [file|-]",
		Short: "append a change to an existing document",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(c *cobra.Command, args []string) error {
			data, err := readInput(c, args[1:])
			if err != nil {
				return err
			}
			d, err := delta.New(delta.Text(string(data)), by)
			if err != nil {
				return err
			}
			return withRepo(a, func(r *repo.Repository) error {
				if err := r.Append(c.Context(), args[0], d); err != nil {
					return err
				}
				fmt.Fprintln(c.OutOrStdout(), d.ID())
				return nil
			})
		},
	}
	c.Flags().StringArrayVar(&by, "by", nil, "endorsement, may be repeated")
	return c
}

func newResolveCommand(a *app) *cobra.Command {
	var asOf string
	c := &cobra.Command{
		Use:   "resolve <did>",
		Short: "replay a document's history and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			var opts []repo.ResolveOpt
			if asOf != "" {
				t, err := delta.ParseTime(asOf)
				if err != nil {
					return fmt.Errorf("--as-of: %w", err)
				}
				opts = append(opts, repo.AsOf(t))
			}
			return withRepo(a, func(r *repo.Repository) error {
				doc, err := r.Resolve(c.Context(), args[0], opts...)
				if err != nil {
					return err
				}
				data, err := document.MarshalIndent(doc)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.OutOrStdout(), string(data))
				return nil
			})
		},
	}
	c.Flags().StringVar(&asOf, "as-of", "", "ignore changes made after this time, e.g. "+
		time.Date(2019, 7, 4, 12, 0, 0, 0, time.UTC).Format(delta.TimeLayout))
	return c
}

func newStateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "state <did>...",
		Short: "print history fingerprints",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return withRepo(a, func(r *repo.Repository) error {
				states, err := r.GetState(c.Context(), args...)
				if err != nil {
					return err
				}
				for _, s := range states {
					fmt.Fprintf(c.OutOrStdout(), "%s %s\n", s.DID, s.Digest)
				}
				return nil
			})
		},
	}
}

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list stored documents",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return withRepo(a, func(r *repo.Repository) error {
				ids, err := r.List(c.Context())
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(c.OutOrStdout(), id)
				}
				return nil
			})
		},
	}
}
