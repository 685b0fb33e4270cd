package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/lumenpay/lumenvault"
	"github.com/spf13/cobra"
)

func newLoginCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate against the LumenPay API and print the session token",
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
			if _, err := unlock(ctx, v, flags, id); err != nil {
				return err
			}
			defer v.Lock(id)

			login, err := lumenvault.NewClient(flags.server, nil).Login(ctx, v, id)
			if err != nil {
				return err
			}
			if login.User.IsNew {
				fmt.Fprintln(os.Stderr, "Registered new account", login.User.ID)
			}
			fmt.Fprintln(cmd.OutOrStdout(), login.Token)
			return nil
		},
	}
}

func newBalanceCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the wallet's balances through the LumenPay relay",
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

			client := lumenvault.NewClient(flags.server, nil)
			if token := os.Getenv("LUMENPAY_TOKEN"); token != "" {
				client.SetToken(token)
			} else {
				if _, err := unlock(ctx, v, flags, id); err != nil {
					return err
				}
				defer v.Lock(id)
				if _, err := client.Login(ctx, v, id); err != nil {
					return err
				}
			}

			balances, err := client.Balances(ctx)
			if errors.Is(err, lumenvault.ErrNotFound) {
				return fmt.Errorf("account %s is not funded yet", short(id))
			} else if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), balances)
		},
	}
}

func newPayCmd(flags *globalFlags) *cobra.Command {
	var (
		asset string
		memo  string
	)

	cmd := &cobra.Command{
		Use:   "pay <destination> <amount>",
		Short: "Send a payment through the LumenPay relay",
		Args:  cobra.ExactArgs(2),
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
			if _, err := unlock(ctx, v, flags, id); err != nil {
				return err
			}
			defer v.Lock(id)

			client := lumenvault.NewClient(flags.server, nil)
			if token := os.Getenv("LUMENPAY_TOKEN"); token != "" {
				client.SetToken(token)
			} else if _, err := client.Login(ctx, v, id); err != nil {
				return err
			}

			sub, err := client.Pay(ctx, v, id, lumenvault.PaymentRequest{
				Destination: args[0],
				Amount:      args[1],
				Asset:       strings.ToLower(asset),
				Memo:        memo,
			})
			var apiErr *lumenvault.APIError
			if errors.As(err, &apiErr) && apiErr.TransactionCode != "" {
				return fmt.Errorf("payment rejected: %s %s", apiErr.TransactionCode, strings.Join(apiErr.OperationCodes, ","))
			} else if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (ledger %d)\n", sub.Hash, sub.Ledger)
			return nil
		},
	}
	cmd.Flags().StringVar(&asset, "asset", "native", "native or usdc")
	cmd.Flags().StringVar(&memo, "memo", "", "text memo, at most 28 bytes")
	return cmd
}
