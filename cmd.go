package main

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/apottere/go-key-recovery/config"
	"github.com/apottere/go-key-recovery/keys"
	"github.com/apottere/go-key-recovery/output"
	"github.com/apottere/go-key-recovery/sweep"
)

type app struct {
	out     io.Writer
	log     *zap.Logger
	v       *viper.Viper
	cfgFile string

	// create opens the --output file; os.Create when nil.
	create func(name string) (io.WriteCloser, error)
}

func (a *app) createOutput(name string) (io.WriteCloser, error) {
	if a.create != nil {
		return a.create(name)
	}
	return os.Create(name)
}

// sync flushes the logger; safe to call before it exists.
func (a *app) sync() {
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func newRootCmd(a *app) (*cobra.Command, error) {
	root := &cobra.Command{
		Use:   "keyrecovery",
		Short: "Recover a private key from a partially known hex string",
		Long: `keyrecovery tries every value for the missing hex characters of a private
key, placed before and/or after the known fragment, and prints each candidate
with the Ethereum address it derives:

  <candidate> -> <address>

Candidates that are not valid secp256k1 scalars are printed with an error
marker so the output has exactly one line per candidate.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE:              a.runSweep,
	}

	fs := root.PersistentFlags()
	config.AddFlags(fs)
	fs.StringVar(&a.cfgFile, "config", "", "config file (yaml, json or toml)")

	v, err := config.NewViper(fs)
	if err != nil {
		return nil, err
	}
	a.v = v

	root.AddCommand(
		&cobra.Command{
			Use:   "sweep",
			Short: "Run the sweep (default)",
			Args:  cobra.NoArgs,
			RunE:  a.runSweep,
		},
		&cobra.Command{
			Use:   "count",
			Short: "Print how many candidates the sweep would try",
			Args:  cobra.NoArgs,
			RunE:  a.runCount,
		},
		newLookupCmd(a),
	)

	balanceCmd, err := newBalanceCmd(a)
	if err != nil {
		return nil, err
	}
	root.AddCommand(balanceCmd)
	return root, nil
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := config.ReadFile(a.v, a.cfgFile); err != nil {
		return err
	}
	if a.log != nil {
		return nil
	}
	log, err := newLogger(a.v.GetString(config.KeyLogLevel))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", config.ErrInvalidConfig, config.KeyLogLevel, err)
	}
	a.log = log
	return nil
}

func (a *app) newGenerator(cfg config.Config, opts ...sweep.Option) (*sweep.Generator, error) {
	deriver, err := keys.ByName(cfg.Deriver, cfg.Format())
	if err != nil {
		return nil, err
	}
	opts = append([]sweep.Option{
		sweep.WithAlphabet(cfg.Alphabet),
		sweep.WithLogger(a.log, cfg.Progress),
	}, opts...)
	return sweep.New(cfg.Known, cfg.Missing, deriver, opts...)
}

func (a *app) runSweep(cmd *cobra.Command, _ []string) (err error) {
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}

	out := a.out
	if cfg.Output != "" {
		var f io.WriteCloser
		f, err = a.createOutput(cfg.Output)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("close %s: %w", cfg.Output, cerr)
			}
		}()
		out = f
	}

	targets := make(map[string]struct{}, len(cfg.Targets))
	for _, t := range cfg.Targets {
		targets[output.NormalizeAddress(t)] = struct{}{}
	}
	var hits int

	w := output.NewWriter(out)
	gen, err := a.newGenerator(cfg, sweep.WithEmitter(func(r sweep.Result) error {
		if r.Err == nil && len(targets) > 0 {
			if _, ok := targets[output.NormalizeAddress(r.Address)]; ok {
				hits++
				a.log.Info("target address found",
					zap.String("candidate", r.Value),
					zap.String("address", r.Address),
					zap.Stringer("split", r.Split),
				)
			}
		}
		return w.Write(r)
	}))
	if err != nil {
		return err
	}

	a.log.Info("starting sweep",
		zap.String("known", gen.Known()),
		zap.Int("missing", gen.Missing()),
		zap.String("alphabet", gen.Alphabet()),
		zap.String("deriver", cfg.Deriver),
		zap.Stringer("candidates", gen.Count()),
	)

	stats, err := gen.Run()
	if ferr := w.Flush(); err == nil && ferr != nil {
		err = fmt.Errorf("flush results: %w", ferr)
	}
	if err != nil {
		return err
	}

	a.log.Info("sweep finished",
		zap.Uint64("candidates", stats.Candidates),
		zap.Uint64("invalid", stats.Invalid),
		zap.Int("targets_found", hits),
	)
	if len(targets) > 0 && hits == 0 {
		a.log.Warn("no target address found")
	}
	return nil
}

func (a *app) runCount(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	gen, err := a.newGenerator(cfg)
	if err != nil {
		return err
	}

	p := message.NewPrinter(language.English)
	perSplit := sweep.Count(gen.Missing(), len(gen.Alphabet()))
	perSplit.Div(perSplit, bigInt(gen.Missing()+1))
	for _, split := range sweep.Splits(gen.Missing()) {
		p.Fprintf(a.out, "split %s: %s\n", split, group(p, perSplit))
	}
	p.Fprintf(a.out, "total: %s\n", group(p, gen.Count()))
	return nil
}

func newLookupCmd(a *app) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "lookup ADDRESS...",
		Short: "Find the candidates for addresses in a previous sweep's output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				return errors.New("lookup: --input is required")
			}
			f, err := os.Open(input)
			if err != nil {
				return err
			}
			defer f.Close()

			matches, err := output.Lookup(f, args)
			if err != nil {
				return err
			}
			for _, m := range matches {
				fmt.Fprintln(a.out, output.FormatLine(m.Candidate, m.Address, nil))
			}
			if len(matches) == 0 {
				a.log.Warn("no matching address", zap.String("input", input), zap.Strings("addresses", args))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "sweep output to search")
	return cmd
}

func bigInt(n int) *big.Int {
	return big.NewInt(int64(n))
}

// group adds thousands separators when n fits in an int64.
func group(p *message.Printer, n *big.Int) string {
	if n.IsInt64() {
		return p.Sprintf("%d", n.Int64())
	}
	return n.String()
}
