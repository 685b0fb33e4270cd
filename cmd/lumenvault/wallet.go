package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/lumenpay/lumenvault/core"
	"github.com/lumenpay/lumenvault/vault"
	"github.com/spf13/cobra"
)

func newCreateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Generate a new wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			v, _, err := openVault(ctx, flags)
			if err != nil {
				return err
			}

			kp, err := vault.Generate()
			if err != nil {
				return err
			}
			p, err := newPassphrase()
			if err != nil {
				return err
			}
			record, err := v.EncryptAndStore(ctx, kp, p)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "Back up this secret key now. It is not shown again.\n%s\n", kp.SecretKey())
			fmt.Fprintln(cmd.OutOrStdout(), record.PublicKey)
			return nil
		},
	}
}

func newImportCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Import a wallet from its secret key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			v, _, err := openVault(ctx, flags)
			if err != nil {
				return err
			}

			secret, err := readSecret("Secret key: ")
			if err != nil {
				return err
			}
			kp, err := vault.Import(secret)
			if err != nil {
				return err
			}
			p, err := newPassphrase()
			if err != nil {
				return err
			}
			record, err := v.EncryptAndStore(ctx, kp, p)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), record.PublicKey)
			return nil
		},
	}
}

func newListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored wallets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			v, _, err := openVault(ctx, flags)
			if err != nil {
				return err
			}

			ids, err := v.Wallets(ctx)
			if err != nil {
				return err
			}
			primary, err := v.Primary(ctx)
			if err != nil && !errors.Is(err, core.ErrNotFound) {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PUBLIC KEY\tCREATED\tDEVICE\tPRIMARY")
			for _, id := range ids {
				record, err := v.Record(ctx, id)
				if err != nil {
					return err
				}
				device, err := v.BiometricEnabled(ctx, id)
				if err != nil {
					return err
				}
				mark := ""
				if id == primary {
					mark = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", id, record.CreatedAt.Local().Format(time.DateTime), device, mark)
			}
			return w.Flush()
		},
	}
}

func newPrimaryCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "primary [public-key]",
		Short: "Show or set the primary wallet",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			v, _, err := openVault(ctx, flags)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				return v.SetPrimary(ctx, args[0])
			}
			id, err := v.Primary(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func newDeleteCmd(flags *globalFlags) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <public-key>",
		Short: "Remove a wallet from this device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			v, _, err := openVault(ctx, flags)
			if err != nil {
				return err
			}
			if !yes {
				ok, err := confirm(ctx, fmt.Sprintf("Delete %s? Funds are lost without a backup of the secret key", short(args[0])))
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("aborted")
				}
			}
			return v.Delete(ctx, args[0])
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

func newPasswdCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change a wallet passphrase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			v, _, err := openVault(ctx, flags)
			if err != nil {
				return err
			}
			id, err := walletID(ctx, v, flags)
			if err != nil {
				return err
			}

			old, err := readSecret("Current passphrase: ")
			if err != nil {
				return err
			}
			next, err := newPassphrase()
			if err != nil {
				return err
			}
			return v.ChangePassphrase(ctx, id, old, next)
		},
	}
}

func newSettingsCmd(flags *globalFlags) *cobra.Command {
	var (
		autoLock int
		network  string
	)

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change vault settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			v, settings, err := openVault(ctx, flags)
			if err != nil {
				return err
			}

			changed := false
			if cmd.Flags().Changed("auto-lock") {
				settings.AutoLockMinutes = autoLock
				changed = true
			}
			if cmd.Flags().Changed("network") {
				settings.Network = network
				changed = true
			}
			if changed {
				if err := v.SaveSettings(ctx, settings); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "network:   %s\nauto-lock: %dm\n", settings.Network, settings.AutoLockMinutes)
			return nil
		},
	}
	cmd.Flags().IntVar(&autoLock, "auto-lock", 0, "minutes before an unlocked wallet locks")
	cmd.Flags().StringVar(&network, "network", "", "testnet or public")
	return cmd
}

func newBiometricCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Manage device key unlock (" + deviceKeyEnv + ")",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "enable",
		Short: "Allow unlocking with the device key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			v, _, err := openVault(ctx, flags)
			if err != nil {
				return err
			}
			id, err := walletID(ctx, v, flags)
			if err != nil {
				return err
			}
			p, err := passphrase(fmt.Sprintf("Passphrase for %s: ", short(id)))
			if err != nil {
				return err
			}
			return v.EnableBiometric(ctx, id, p)
		},
	}, &cobra.Command{
		Use:   "disable",
		Short: "Forget the device key copy of the wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			v, _, err := openVault(ctx, flags)
			if err != nil {
				return err
			}
			id, err := walletID(ctx, v, flags)
			if err != nil {
				return err
			}
			return v.DisableBiometric(ctx, id)
		},
	})
	return cmd
}
