// Package config holds the sweep options and loads them with viper.
//
// Priority: flags > env vars (KEYRECOVERY_*) > config file > defaults.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/apottere/go-key-recovery/keys"
	"github.com/apottere/go-key-recovery/sweep"
)

const EnvPrefix = "KEYRECOVERY"

const (
	KeyKnown    = "known"
	KeyMissing  = "missing"
	KeyAlphabet = "alphabet"
	KeyDeriver  = "deriver"
	KeyChecksum = "checksum"
	KeyOutput   = "output"
	KeyTarget   = "target"
	KeyProgress = "progress"
	KeyLogLevel = "log-level"
	KeyRPCURL   = "rpc-url"
	KeyToken    = "token"
)

const (
	DefaultKnown    = "0a5c2dffb9a6e1240e7d8f58b1e68d6c9fce1e6e9b0a5c0e7f1b2c3a4b5"
	DefaultMissing  = 5
	DefaultProgress = 1_000_000
	DefaultLogLevel = "info"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Known    string
	Missing  int
	Alphabet string
	Deriver  string
	Checksum bool
	Output   string
	Targets  []string
	Progress uint64
	LogLevel string
}

// AddFlags registers every option on fs with its default.
func AddFlags(fs *pflag.FlagSet) {
	fs.String(KeyKnown, DefaultKnown, "known hex fragment of the private key")
	fs.Int(KeyMissing, DefaultMissing, "number of unknown hex characters around the fragment")
	fs.String(KeyAlphabet, sweep.HexAlphabet, "characters tried at each unknown position")
	fs.String(KeyDeriver, keys.NameECC, "address deriver ("+strings.Join(keys.Names, "|")+")")
	fs.Bool(KeyChecksum, true, "print EIP-55 checksummed addresses instead of bare lower-case hex")
	fs.StringP(KeyOutput, "o", "", "write results to this file instead of stdout")
	fs.StringSlice(KeyTarget, nil, "address to watch for; may be repeated")
	fs.Uint64(KeyProgress, DefaultProgress, "log progress every N candidates, 0 to disable")
	fs.String(KeyLogLevel, DefaultLogLevel, "log level (debug|info|warn|error)")
}

// NewViper returns a viper instance bound to fs and the environment.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	return v, nil
}

// ReadFile merges a config file into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

func Load(v *viper.Viper) (Config, error) {
	c := Config{
		Known:    strings.ToLower(strings.TrimSpace(v.GetString(KeyKnown))),
		Missing:  v.GetInt(KeyMissing),
		Alphabet: strings.ToLower(v.GetString(KeyAlphabet)),
		Deriver:  v.GetString(KeyDeriver),
		Checksum: v.GetBool(KeyChecksum),
		Output:   v.GetString(KeyOutput),
		Targets:  List(v, KeyTarget),
		Progress: v.GetUint64(KeyProgress),
		LogLevel: v.GetString(KeyLogLevel),
	}
	return c, c.Validate()
}

// List reads a list option. Values are split on commas as well, so
// KEYRECOVERY_TARGET=0xaa,0xbb gives two entries like the repeated flag does.
func List(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// AddBalanceFlags registers the options of the balance command.
func AddBalanceFlags(fs *pflag.FlagSet) {
	fs.String(KeyRPCURL, "", "Ethereum JSON-RPC endpoint")
	fs.StringSlice(KeyToken, nil, "ERC-20 contract to read balanceOf from; may be repeated")
}

// Balance holds the options of the balance command.
type Balance struct {
	RPCURL string
	Tokens []string
}

func LoadBalance(v *viper.Viper) (Balance, error) {
	b := Balance{
		RPCURL: strings.TrimSpace(v.GetString(KeyRPCURL)),
		Tokens: List(v, KeyToken),
	}
	if b.RPCURL == "" {
		return b, fmt.Errorf("%w: %s is required", ErrInvalidConfig, KeyRPCURL)
	}
	for _, t := range b.Tokens {
		if !common.IsHexAddress(t) {
			return b, fmt.Errorf("%w: %s %q is not an address", ErrInvalidConfig, KeyToken, t)
		}
	}
	return b, nil
}

// Validate returns sweep.ErrMalformedKnownFragment for a bad fragment and
// ErrInvalidConfig for everything else.
func (c Config) Validate() error {
	if err := sweep.ValidateFragment(c.Known); err != nil {
		return err
	}
	if c.Missing < 0 {
		return fmt.Errorf("%w: %s must not be negative, got %d", ErrInvalidConfig, KeyMissing, c.Missing)
	}
	if c.Alphabet == "" {
		return fmt.Errorf("%w: %s must not be empty", ErrInvalidConfig, KeyAlphabet)
	}
	if !slices.Contains(keys.Names, c.Deriver) {
		return fmt.Errorf("%w: %s must be one of %v, got %q", ErrInvalidConfig, KeyDeriver, keys.Names, c.Deriver)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, KeyLogLevel, err)
	}
	return nil
}

func (c Config) Format() keys.Format {
	if c.Checksum {
		return keys.FormatChecksum
	}
	return keys.FormatLower
}
