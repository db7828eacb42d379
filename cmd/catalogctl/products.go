package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"CatalogFeed/internal/client"
)

var errConflictingFilters = errors.New("--sorted and --cheaper-than cannot be combined")

func newListCmd(opts *rootOptions) *cobra.Command {
	var (
		sorted      bool
		cheaperThan float64
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filtered := cmd.Flags().Changed("cheaper-than")
			if sorted && filtered {
				return errConflictingFilters
			}

			c := opts.client()
			ctx := cmd.Context()

			var (
				ps  []client.Product
				err error
			)
			switch {
			case sorted:
				ps, err = c.ListSorted(ctx)
			case filtered:
				ps, err = c.ListCheaperThan(ctx, cheaperThan)
			default:
				ps, err = c.List(ctx)
			}
			if err != nil {
				return err
			}

			for _, p := range ps {
				if err := printJSON(cmd.OutOrStdout(), p); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&sorted, "sorted", false, "order by name")
	cmd.Flags().Float64Var(&cheaperThan, "cheaper-than", 0, "only products priced strictly below this")
	return cmd
}

func newGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.client().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
}

func newCreateCmd(opts *rootOptions) *cobra.Command {
	var p client.Product

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			saved, err := opts.client().Create(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), saved)
		},
	}

	cmd.Flags().StringVar(&p.ID, "id", "", "explicit id, replaces an existing product")
	cmd.Flags().StringVar(&p.Name, "name", "", "product name")
	cmd.Flags().Float64Var(&p.Price, "price", 0, "product price")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func newUpdateCmd(opts *rootOptions) *cobra.Command {
	var p client.Product

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Replace a product's name and price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			saved, err := opts.client().Update(cmd.Context(), args[0], p)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), saved)
		},
	}

	cmd.Flags().StringVar(&p.Name, "name", "", "product name")
	cmd.Flags().Float64Var(&p.Price, "price", 0, "product price")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return err
		},
	}
}
