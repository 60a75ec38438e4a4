package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/lumos-codes-dev/dfv-sc-core/config"
	"github.com/lumos-codes-dev/dfv-sc-core/core/events"
	"github.com/lumos-codes-dev/dfv-sc-core/core/state"
	"github.com/lumos-codes-dev/dfv-sc-core/crypto"
	"github.com/lumos-codes-dev/dfv-sc-core/native/vesting"
	"github.com/lumos-codes-dev/dfv-sc-core/observability/logging"
	"github.com/lumos-codes-dev/dfv-sc-core/observability/otel"
	"github.com/lumos-codes-dev/dfv-sc-core/rpc"
	"github.com/lumos-codes-dev/dfv-sc-core/storage"
)

func main() {
	configPath := flag.String("config", "./vestd.toml", "path to the node configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "vestd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.SetupWithRotation("vestd", cfg.Log.Env, logging.Rotation{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: "vestd",
			Environment: cfg.Log.Env,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := storage.Open(cfg.DBBackend, filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	manager := state.NewManager(db)
	vault := resolveVault(cfg.VaultAddress)

	engine := vesting.NewEngine()
	engine.SetState(manager)
	engine.SetLedger(manager)
	engine.SetVault(vault)
	engine.SetToken(cfg.TokenSymbol)
	engine.SetFundingMode(cfg.ResolveFundingMode())
	engine.SetEmitter(events.NewLogEmitter(logger))

	if err := seedAllocation(cfg, manager, engine, vault); err != nil {
		return fmt.Errorf("seed allocation: %w", err)
	}

	auth := rpc.NewAuthenticator(rpc.AuthConfig{
		Enabled:    cfg.Auth.Enabled,
		HMACSecret: cfg.Auth.HMACSecret,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
	})
	server := rpc.NewServer(engine, auth, logger)

	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting JSON-RPC server", "addr", cfg.RPCAddress)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// resolveVault decodes the configured vault address or derives the
// deterministic module address when none is set.
func resolveVault(configured string) [20]byte {
	var vault [20]byte
	if configured != "" {
		addr := crypto.MustDecodeAddress(configured)
		copy(vault[:], addr.Bytes())
		return vault
	}
	digest := ethcrypto.Keccak256([]byte("vesting:module-vault"))
	copy(vault[:], digest[12:])
	return vault
}

// seedAllocation applies the externalised genesis file on first boot: mint
// the initial supply to the vault, write the category table and execute the
// seed grants through the engine's normal creation path.
func seedAllocation(cfg *config.Config, manager *state.Manager, engine *vesting.Engine, vault [20]byte) error {
	seeded, err := manager.AllocationSeeded()
	if err != nil {
		return err
	}
	if seeded {
		return nil
	}
	alloc, err := config.LoadAllocation(cfg.AllocationFile)
	if err != nil {
		return err
	}
	supply, err := config.ParseAmount(alloc.Supply)
	if err != nil {
		return err
	}
	if supply.Sign() > 0 {
		if err := manager.Mint(vault, cfg.TokenSymbol, supply); err != nil {
			return err
		}
	}
	rows, err := alloc.CategoryRows()
	if err != nil {
		return err
	}
	if err := manager.SeedCategories(rows); err != nil {
		return err
	}
	for _, grant := range alloc.Grants {
		categoryID, err := vesting.ParseCategoryID(grant.Category)
		if err != nil {
			return err
		}
		beneficiary, err := crypto.DecodeAddress(grant.Beneficiary)
		if err != nil {
			return fmt.Errorf("grant beneficiary %q: %w", grant.Beneficiary, err)
		}
		var addr [20]byte
		copy(addr[:], beneficiary.Bytes())
		value, err := config.ParseAmount(grant.Value)
		if err != nil {
			return err
		}
		if _, err := engine.CreateCategoryPool(vesting.CapabilityManager, vault, categoryID, addr, value, grant.Start); err != nil {
			return fmt.Errorf("seed grant for %s: %w", grant.Beneficiary, err)
		}
	}
	return nil
}
