// Package commands holds the agroctl admin CLI.
package commands

import (
	"context"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ariefcatur/go-agro-market/internal/app"
	"github.com/ariefcatur/go-agro-market/internal/config"
	"github.com/ariefcatur/go-agro-market/internal/logx"
)

var (
	cfg      config.Config
	log      *slog.Logger
	envFile  string
	storeArg string
)

func Execute() error {
	return newRoot().Execute()
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "agroctl",
		Short:        "Admin tasks for the agro market service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load(envFile)
			cfg = config.Load()
			if storeArg != "" {
				cfg.StoreDriver = storeArg
			}
			log = logx.New(cfg.LogLevel, "text", "agroctl")
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file to load before reading the environment")
	root.PersistentFlags().StringVar(&storeArg, "store", "", "override STORE_DRIVER (postgres|memory)")

	root.AddCommand(migrateCmd(), seedCmd(), expireDemandsCmd(), plansCmd())
	return root
}

// services opens the configured store and builds the domain services on it.
func services(ctx context.Context) (*app.Services, func(), error) {
	store, closeFn, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	gw, err := app.Gateway(cfg)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	svcs := app.New(app.Deps{
		Store:    store,
		Payments: gw,
		Merchant: app.MerchantOf(cfg),
		Producer: "agroctl",
		Log:      log,
	})
	return svcs, closeFn, nil
}
