package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/apottere/go-key-recovery/balance"
	"github.com/apottere/go-key-recovery/config"
	"github.com/apottere/go-key-recovery/output"
)

func newBalanceCmd(a *app) (*cobra.Command, error) {
	var input string
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Print the ETH and ERC-20 balances of the addresses in a sweep output",
		Long: `balance reads a previous sweep's output and prints one line per distinct
address:

  <address>=<ether>[,<token>#<amount>...]

Token amounts are only listed when non-zero.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if input == "" {
				return errors.New("balance: --input is required")
			}
			cfg, err := config.LoadBalance(a.v)
			if err != nil {
				return err
			}

			f, err := os.Open(input)
			if err != nil {
				return err
			}
			defer f.Close()
			entries, err := output.Entries(f)
			if err != nil {
				return err
			}

			client, err := ethclient.DialContext(cmd.Context(), cfg.RPCURL)
			if err != nil {
				return fmt.Errorf("dial %s: %w", cfg.RPCURL, err)
			}
			defer client.Close()

			tokens := make([]common.Address, 0, len(cfg.Tokens))
			for _, t := range cfg.Tokens {
				tokens = append(tokens, common.HexToAddress(t))
			}
			checker := balance.NewChecker(client, tokens)

			seen := make(map[common.Address]struct{}, len(entries))
			var funded int
			for _, e := range entries {
				if !common.IsHexAddress(e.Address) {
					a.log.Warn("skipping malformed address", zap.Int("line", e.Line), zap.String("address", e.Address))
					continue
				}
				addr := common.HexToAddress(e.Address)
				if _, ok := seen[addr]; ok {
					continue
				}
				seen[addr] = struct{}{}

				b, err := checker.Check(cmd.Context(), addr)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, b.String())
				if !b.Empty() {
					funded++
					a.log.Info("funded address",
						zap.String("candidate", e.Candidate),
						zap.String("balance", b.String()),
					)
				}
			}

			a.log.Info("balance check finished",
				zap.Int("addresses", len(seen)),
				zap.Int("funded", funded),
			)
			return nil
		},
	}

	config.AddBalanceFlags(cmd.Flags())
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "sweep output to read addresses from")
	return cmd, nil
}
