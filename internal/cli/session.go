package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c50bossio/6fb-methodologies-sub002/internal/admin"
	"github.com/c50bossio/6fb-methodologies-sub002/internal/checkout"
	"github.com/c50bossio/6fb-methodologies-sub002/internal/config"
	"github.com/c50bossio/6fb-methodologies-sub002/internal/inventory"
	"github.com/c50bossio/6fb-methodologies-sub002/internal/store"
)

// session bundles everything a command needs to talk to the inventory.
type session struct {
	catalog *config.Catalog
	inv     *inventory.Store
	logger  *slog.Logger
	closer  io.Closer
}

// openSession loads the catalog, opens the backend and builds the store.
// Callers must Close the session.
func openSession(ctx context.Context, cmd *cobra.Command, opts *RootOptions) (*session, error) {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	catalog, err := config.Load(opts.Catalog)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load catalog", err)
	}

	var (
		backend inventory.Backend
		closer  io.Closer
	)
	if opts.Database == "" {
		backend = inventory.NewMemoryBackend()
	} else {
		db, err := store.Open(opts.Database)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		backend = db
		closer = db
	}
	logger.Debug("session opened",
		slog.String("db", opts.Database),
		slog.String("catalog", opts.Catalog),
		slog.Int("events", len(catalog.Events)))

	storeOpts := append(catalog.StoreOptions(), inventory.WithLogger(logger))
	inv, err := inventory.New(ctx, backend, catalog.Limits(), storeOpts...)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, WrapExitError(ExitFailure, "failed to initialize inventory", err)
	}

	return &session{catalog: catalog, inv: inv, logger: logger, closer: closer}, nil
}

func (s *session) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func (s *session) admin() *admin.Service {
	return admin.NewService(s.inv, s.logger)
}

func (s *session) validator() *checkout.Validator {
	var opts []checkout.ValidatorOption
	if s.catalog.Settings.MaxQuantity > 0 {
		opts = append(opts, checkout.WithMaxQuantity(s.catalog.Settings.MaxQuantity))
	}
	return checkout.NewValidator(s.inv, opts...)
}

func (s *session) confirmer() *checkout.Confirmer {
	return checkout.NewConfirmer(s.inv,
		checkout.WithEscalator(checkout.LogEscalator{Logger: s.logger}),
		checkout.WithLogger(s.logger))
}

// mutatingOps are the commands whose changes only survive with --db.
var mutatingOps = map[string]bool{
	"decrement": true,
	"confirm":   true,
	"expand":    true,
	"reset":     true,
}

// tierArg converts a tier argument into an inventory tier. Unknown tiers
// pass through so the store reports them as validation errors.
func tierArg(s string) inventory.Tier {
	return inventory.Tier(strings.ToLower(strings.TrimSpace(s)))
}

// countArg parses a positive integer argument.
func countArg(name, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, WrapExitError(ExitCommandError, fmt.Sprintf("invalid %s %q", name, s), err)
	}
	return n, nil
}
