package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apottere/go-key-recovery/keys"
	"github.com/apottere/go-key-recovery/sweep"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func load(t *testing.T, fs *pflag.FlagSet, file string) (Config, error) {
	t.Helper()
	v, err := NewViper(fs)
	require.NoError(t, err)
	require.NoError(t, ReadFile(v, file))
	return Load(v)
}

func TestDefaults(t *testing.T) {
	c, err := load(t, newFlags(t), "")
	require.NoError(t, err)

	assert.Equal(t, DefaultKnown, c.Known)
	assert.Equal(t, 5, c.Missing)
	assert.Equal(t, sweep.HexAlphabet, c.Alphabet)
	assert.Equal(t, keys.NameECC, c.Deriver)
	assert.True(t, c.Checksum)
	assert.Equal(t, keys.FormatChecksum, c.Format())
	assert.Equal(t, uint64(DefaultProgress), c.Progress)
	assert.Empty(t, c.Output)
	assert.Empty(t, c.Targets)
}

func TestPrecedence(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sweep.yaml")
	require.NoError(t, os.WriteFile(file, []byte("known: c0ffee\nmissing: 3\nderiver: geth\nchecksum: false\n"), 0o600))

	c, err := load(t, newFlags(t), file)
	require.NoError(t, err)
	assert.Equal(t, "c0ffee", c.Known)
	assert.Equal(t, 3, c.Missing)
	assert.Equal(t, keys.NameGeth, c.Deriver)
	assert.Equal(t, keys.FormatLower, c.Format())

	t.Setenv("KEYRECOVERY_MISSING", "2")
	t.Setenv("KEYRECOVERY_LOG_LEVEL", "debug")
	c, err = load(t, newFlags(t), file)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Missing)
	assert.Equal(t, "debug", c.LogLevel)

	c, err = load(t, newFlags(t, "--missing", "1", "--known", "BEEF", "--target", "0xAA", "--target", "bb"), file)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Missing)
	assert.Equal(t, "beef", c.Known)
	assert.Equal(t, []string{"0xAA", "bb"}, c.Targets)
}

func TestValidate(t *testing.T) {
	valid := Config{Known: "ab", Missing: 1, Alphabet: sweep.HexAlphabet, Deriver: keys.NameECC, LogLevel: "info"}
	require.NoError(t, valid.Validate())

	malformed := valid
	malformed.Known = "xy"
	require.ErrorIs(t, malformed.Validate(), sweep.ErrMalformedKnownFragment)

	tests := map[string]func(*Config){
		"negative missing": func(c *Config) { c.Missing = -1 },
		"empty alphabet":   func(c *Config) { c.Alphabet = "" },
		"unknown deriver":  func(c *Config) { c.Deriver = "openssl" },
		"bad log level":    func(c *Config) { c.LogLevel = "loud" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			require.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	v, err := NewViper(newFlags(t))
	require.NoError(t, err)
	require.Error(t, ReadFile(v, filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestTargetsFromEnvAreCommaSeparated(t *testing.T) {
	t.Setenv("KEYRECOVERY_TARGET", "0xaa, 0xbb,,0xcc")

	c, err := load(t, newFlags(t), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"0xaa", "0xbb", "0xcc"}, c.Targets)
}

func TestLoadBalance(t *testing.T) {
	newBalanceViper := func(t *testing.T, args ...string) *viper.Viper {
		t.Helper()
		fs := pflag.NewFlagSet("balance", pflag.ContinueOnError)
		AddBalanceFlags(fs)
		require.NoError(t, fs.Parse(args))
		v, err := NewViper(fs)
		require.NoError(t, err)
		return v
	}

	_, err := LoadBalance(newBalanceViper(t))
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = LoadBalance(newBalanceViper(t, "--rpc-url", "http://node", "--token", "nope"))
	require.ErrorIs(t, err, ErrInvalidConfig)

	t.Setenv("KEYRECOVERY_RPC_URL", "http://node:8545")
	t.Setenv("KEYRECOVERY_TOKEN", "0xdAC17F958D2ee523a2206206994597C13D831ec7,0x6b175474e89094c44da98b954eedeac495271d0f")
	b, err := LoadBalance(newBalanceViper(t))
	require.NoError(t, err)
	assert.Equal(t, "http://node:8545", b.RPCURL)
	assert.Len(t, b.Tokens, 2)
}
