package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	dir     string
	wallet  string
	server  string
	device  bool
	verbose bool
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("lumenvault failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "lumenvault",
		Short:         "Non-custodial Stellar key vault",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	root.PersistentFlags().StringVar(&flags.dir, "dir", defaultDir(), "vault directory")
	root.PersistentFlags().StringVarP(&flags.wallet, "wallet", "w", "", "wallet public key (defaults to the primary wallet)")
	root.PersistentFlags().StringVar(&flags.server, "server", envOr("LUMENPAY_SERVER", "http://localhost:8080"), "LumenPay API base URL")
	root.PersistentFlags().BoolVar(&flags.device, "device", false, "unlock with the device key instead of the passphrase")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newCreateCmd(flags),
		newImportCmd(flags),
		newListCmd(flags),
		newPrimaryCmd(flags),
		newDeleteCmd(flags),
		newPasswdCmd(flags),
		newSettingsCmd(flags),
		newBiometricCmd(flags),
		newSignCmd(flags),
		newSignTxCmd(flags),
		newLoginCmd(flags),
		newBalanceCmd(flags),
		newPayCmd(flags),
	)
	return root
}

func defaultDir() string {
	if dir := os.Getenv("LUMENVAULT_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lumenvault"
	}
	return filepath.Join(home, ".lumenvault")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
