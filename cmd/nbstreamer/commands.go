package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/akave-ai/nbstreamer/internal/config"
	"github.com/akave-ai/nbstreamer/internal/database"
	"github.com/akave-ai/nbstreamer/internal/logger"
	"github.com/akave-ai/nbstreamer/internal/model"
	"github.com/akave-ai/nbstreamer/internal/tenant"
	"github.com/akave-ai/nbstreamer/internal/transform"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP ingestion server (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply tenant registry migrations to NB_DATABASE_URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("NB_DATABASE_URL is not set")
			}
			log := logger.New(cfg)
			v, err := database.Migrate(cmd.Context(), cfg.Database.URL, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", v)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

// transformCmd prints the GELF message an event would be forwarded as.
func transformCmd() *cobra.Command {
	var tenantID string
	cmd := &cobra.Command{
		Use:   "transform [file]",
		Short: "Print the GELF message for a NetBird event read from file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return transformEvent(cmd.Context(), in, cmd.OutOrStdout(), tenantID)
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id (default: the event's NB_Tenant)")
	return cmd
}

func transformEvent(_ context.Context, in io.Reader, out io.Writer, tenantID string) error {
	ev, err := model.DecodeEvent(in)
	if err != nil {
		return err
	}
	r := &tenant.Resolver{EnforceLegacy: true}
	var res tenant.Resolution
	if tenantID != "" {
		res, err = r.Resolve(tenantID, ev)
	} else {
		res, err = r.ResolveLegacy(ev)
	}
	if err != nil {
		return err
	}
	msg := transform.NewComposer().Compose(res.Event, res.Tenant)
	body, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode gelf: %w", err)
	}
	_, err = fmt.Fprintln(out, string(body))
	return err
}
