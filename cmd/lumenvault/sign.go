package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newSignCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sign <message>",
		Short: "Sign a UTF-8 message",
		Args:  cobra.ExactArgs(1),
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

			signed, err := v.SignMessage(id, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), signed)
		},
	}
}

func newSignTxCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sign-tx [envelope|-]",
		Short: "Sign a base64 transaction envelope",
		Long:  "Sign a base64 transaction envelope for the configured network. Reads stdin when the argument is - or missing.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			envelope := "-"
			if len(args) == 1 {
				envelope = args[0]
			}
			if envelope == "-" {
				raw, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("failed to read envelope: %w", err)
				}
				envelope = string(raw)
			}
			envelope = strings.TrimSpace(envelope)

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

			signed, err := v.SignTransaction(id, envelope)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), signed)
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
