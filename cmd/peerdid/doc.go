package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spacemeshos/go-peerdid/document"
)

func newDiffCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <a.json> <b.json>",
		Short: "compare two documents ignoring array order",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			b, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			div, err := document.DiffJSON(a, b)
			if err != nil {
				return err
			}
			if div != nil {
				return fmt.Errorf("documents differ at %s", div.Path)
			}
			fmt.Fprintln(c.OutOrStdout(), "equal")
			return nil
		},
	}
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file|-]",
		Short: "check the shape of a DID document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			data, err := readInput(c, args)
			if err != nil {
				return err
			}
			if err := document.ValidateJSON(data); err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), "valid")
			return nil
		},
	}
}
