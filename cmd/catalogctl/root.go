package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"CatalogFeed/internal/client"
)

const defaultServer = "http://localhost:8080"

type rootOptions struct {
	server string
	token  string
}

func (o *rootOptions) client() *client.Client {
	return client.New(o.server, client.WithToken(o.token))
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Talk to a catalog server and watch its change feed",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.server, "server", envOr("CATALOG_SERVER", defaultServer), "catalog base URL")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("CATALOG_TOKEN"), "bearer token for write operations")

	cmd.AddCommand(
		newListCmd(opts),
		newGetCmd(opts),
		newCreateCmd(opts),
		newUpdateCmd(opts),
		newDeleteCmd(opts),
		newWatchCmd(opts),
		newTokenCmd(),
	)
	return cmd
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// printJSON writes v as one JSON line.
func printJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
