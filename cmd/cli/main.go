package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/repository"
	"github.com/wadjakorntonsri/shortlink/pkg/config"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/core/services"
	"github.com/wadjakorntonsri/shortlink/pkg/logger"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()
	log := logger.New(cfg)
	// stdout carries export data
	log.SetOutput(os.Stderr)

	var store *repository.Store

	root := &cobra.Command{
		Use:           "shortlink",
		Short:         "Maintenance commands for the shortlink database",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			store, err = repository.Open(cmd.Context(), cfg, log)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if store == nil {
				return nil
			}
			return store.Close()
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Write every link with its click history to stdout as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return exportLinks(cmd.Context(), store, cmd.OutOrStdout())
		},
	})

	var file string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Load links from a JSON export, skipping codes that already exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open import file: %w", err)
			}
			defer f.Close()

			n, err := importLinks(cmd.Context(), store, f, log)
			if err != nil {
				return err
			}
			log.WithField("imported", n).Info("import finished")
			return nil
		},
	}
	importCmd.Flags().StringVarP(&file, "file", "f", "", "JSON file to import")
	_ = importCmd.MarkFlagRequired("file")
	root.AddCommand(importCmd)

	root.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Delete expired links once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			links := services.NewLinkService(store, cfg.BaseURL, cfg.DefaultExpiryDays)
			n, err := links.SweepExpired(cmd.Context())
			if err != nil {
				return err
			}
			log.WithField("deleted", n).Info("sweep finished")
			return nil
		},
	})

	return root
}

func exportLinks(ctx context.Context, repo ports.LinkRepository, w io.Writer) error {
	links, err := repo.Dump(ctx)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if links == nil {
		links = []domain.Link{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(links)
}

// importLinks recreates links and replays their clicks so the stored counter
// matches the imported history.
func importLinks(ctx context.Context, repo ports.LinkRepository, r io.Reader, log logrus.FieldLogger) (int, error) {
	var links []domain.Link
	if err := json.NewDecoder(r).Decode(&links); err != nil {
		return 0, fmt.Errorf("decode failed: %w", err)
	}

	count := 0
	for i := range links {
		l := &links[i]
		entry := log.WithField("short_code", l.ShortCode)

		existing, err := repo.GetByShortCode(ctx, l.ShortCode)
		if err != nil {
			return count, err
		}
		if existing != nil {
			entry.Info("skipping existing code")
			continue
		}

		clicks := l.Clicks
		if err := repo.Create(ctx, l); err != nil {
			entry.WithError(err).Warn("failed to import link")
			continue
		}
		for j := range clicks {
			if err := repo.RecordClick(ctx, l, &clicks[j]); err != nil {
				return count, fmt.Errorf("replay clicks for %s: %w", l.ShortCode, err)
			}
		}
		count++
	}
	return count, nil
}
