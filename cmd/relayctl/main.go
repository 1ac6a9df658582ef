package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/omni/job-relay/presenter/client"
)

const envPrefix = "RELAYCTL"

func main() {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:          "relayctl",
		Short:        "Control a running job relay",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("url", "http://localhost:3333", "relay presenter url")
	root.PersistentFlags().String("token", "", "presenter auth token")
	root.PersistentFlags().Duration("timeout", 30*time.Second, "request timeout")
	if err := v.BindPFlags(root.PersistentFlags()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	newClient := func() *client.Client {
		return client.New(v.GetString("url"), v.GetString("token"), v.GetDuration("timeout"))
	}

	root.AddCommand(&cobra.Command{
		Use:   "address",
		Short: "Print the relay account address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			address, err := newClient().Address(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), address)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the relay sync status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := newClient().Status(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "transfer <amount-wei> <to>",
		Short: "Transfer value from the relay account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, ok := new(big.Int).SetString(args[0], 10)
			if !ok || amount.Sign() <= 0 {
				return fmt.Errorf("invalid amount %q", args[0])
			}
			if !common.IsHexAddress(args[1]) {
				return fmt.Errorf("invalid address %q", args[1])
			}
			txHash, err := newClient().Transfer(cmd.Context(), amount, common.HexToAddress(args[1]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), txHash.Hex())
			return nil
		},
	})

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
