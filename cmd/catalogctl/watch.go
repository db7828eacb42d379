package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"CatalogFeed/internal/catalog"
	"CatalogFeed/internal/client"
)

type watchLine struct {
	Seq     uint64         `json:"seq"`
	Type    string         `json:"type"`
	Product client.Product `json:"product"`
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream product changes as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			seen := 0

			ready := func() { fmt.Fprintln(cmd.ErrOrStderr(), "watching", opts.server) }
			err := opts.client().Watch(ctx, ready, func(ev client.Event) error {
				if err := printJSON(cmd.OutOrStdout(), watchLine(ev)); err != nil {
					return err
				}
				seen++
				if count > 0 && seen >= count {
					return errEnough
				}
				return nil
			})

			switch {
			case errors.Is(err, errEnough), errors.Is(err, context.Canceled):
				return nil
			default:
				return err
			}
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "exit after this many events (0 streams forever)")
	return cmd
}

var errEnough = errors.New("event count reached")

func newTokenCmd() *cobra.Command {
	var (
		secret  string
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with the server's secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				return errors.New("--secret or CATALOG_JWT_SECRET is required")
			}
			tok, err := catalog.NewTokenMaker(secret).New(subject, role, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}

	cmd.Flags().StringVar(&secret, "secret", envOr("CATALOG_JWT_SECRET", ""), "HS256 signing secret")
	cmd.Flags().StringVar(&subject, "subject", "catalogctl", "token subject")
	cmd.Flags().StringVar(&role, "role", catalog.RoleAdmin, "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
