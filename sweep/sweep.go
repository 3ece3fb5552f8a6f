// Package sweep enumerates every completion of a partially known private key
// and derives the address of each completion.
//
// The unknown characters are split between a prefix and a suffix around the
// known fragment. Every split (i, m-i) for i = 0..m is tried, prefixes and
// suffixes are enumerated lexicographically over the alphabet, and the
// suffix varies fastest.
package sweep

import (
	"errors"
	"fmt"
	"iter"
	"math/big"
	"strings"

	"go.uber.org/zap"

	"github.com/apottere/go-key-recovery/keys"
)

// HexAlphabet is the default search alphabet.
const HexAlphabet = "0123456789abcdef"

var (
	ErrMalformedKnownFragment = errors.New("malformed known fragment")
	ErrInvalidMissingLength   = errors.New("invalid missing length")
	ErrInvalidAlphabet        = errors.New("invalid alphabet")
)

// Deriver derives the address for a candidate private key.
type Deriver interface {
	Address(candidate string) (string, error)
}

// Split places Prefix unknown characters before the known fragment and
// Suffix after it.
type Split struct {
	Prefix int
	Suffix int
}

func (s Split) String() string {
	return fmt.Sprintf("%d+%d", s.Prefix, s.Suffix)
}

// Candidate is one assembled key and the split that produced it.
type Candidate struct {
	Split Split
	Value string
}

// Result pairs a candidate with its address. Err is set instead of Address
// when the candidate is not a usable private key.
type Result struct {
	Candidate
	Address string
	Err     error
}

// Emitter receives every result as soon as it is derived.
type Emitter func(Result) error

// Stats counts the results of one sweep.
type Stats struct {
	Candidates uint64
	Invalid    uint64
}

func (s *Stats) add(r Result) {
	s.Candidates++
	if r.Err != nil {
		s.Invalid++
	}
}

// Option configures a Generator.
type Option func(*Generator) error

// WithAlphabet replaces the hex alphabet. The characters must be unique hex
// digits; they are tried in the given order.
func WithAlphabet(alphabet string) Option {
	return func(g *Generator) error {
		alphabet = strings.ToLower(alphabet)
		if err := validateAlphabet(alphabet); err != nil {
			return err
		}
		g.alphabet = alphabet
		return nil
	}
}

// WithEmitter sets the callback that sees each result before it is yielded.
func WithEmitter(emit Emitter) Option {
	return func(g *Generator) error {
		g.emit = emit
		return nil
	}
}

// WithLogger logs split boundaries at debug level and a progress line every
// `every` candidates at info level. every == 0 disables progress lines.
func WithLogger(log *zap.Logger, every uint64) Option {
	return func(g *Generator) error {
		if log != nil {
			g.log = log
		}
		g.progressEvery = every
		return nil
	}
}

// Generator is the candidate generator. It is not safe for concurrent use;
// the deriver it wraps usually keeps scratch buffers.
type Generator struct {
	known    string
	missing  int
	alphabet string
	deriver  Deriver
	emit     Emitter

	log           *zap.Logger
	progressEvery uint64

	err error
}

// New checks the known fragment before anything is enumerated.
func New(known string, missing int, deriver Deriver, opts ...Option) (*Generator, error) {
	known = strings.ToLower(known)
	if err := ValidateFragment(known); err != nil {
		return nil, err
	}
	if missing < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMissingLength, missing)
	}
	if deriver == nil {
		return nil, errors.New("sweep: nil deriver")
	}

	g := &Generator{
		known:    known,
		missing:  missing,
		alphabet: HexAlphabet,
		deriver:  deriver,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// ValidateFragment reports ErrMalformedKnownFragment for an empty fragment or
// one containing anything but hex digits.
func ValidateFragment(known string) error {
	if known == "" {
		return fmt.Errorf("%w: empty", ErrMalformedKnownFragment)
	}
	for i := 0; i < len(known); i++ {
		if !keys.IsHex(known[i]) {
			return fmt.Errorf("%w: character %q at offset %d is not hex", ErrMalformedKnownFragment, known[i], i)
		}
	}
	return nil
}

func validateAlphabet(alphabet string) error {
	if alphabet == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAlphabet)
	}
	var seen [256]bool
	for i := 0; i < len(alphabet); i++ {
		c := alphabet[i]
		if !keys.IsHex(c) {
			return fmt.Errorf("%w: character %q is not hex", ErrInvalidAlphabet, c)
		}
		if seen[c] {
			return fmt.Errorf("%w: character %q repeated", ErrInvalidAlphabet, c)
		}
		seen[c] = true
	}
	return nil
}

// Known returns the normalized fragment.
func (g *Generator) Known() string { return g.known }

func (g *Generator) Missing() int { return g.missing }

func (g *Generator) Alphabet() string { return g.alphabet }

// Count is the number of candidates this generator yields.
func (g *Generator) Count() *big.Int {
	return Count(g.missing, len(g.alphabet))
}

// Count returns (missing+1) * alphabetSize^missing.
func Count(missing, alphabetSize int) *big.Int {
	if missing < 0 || alphabetSize < 0 {
		return new(big.Int)
	}
	n := new(big.Int).Exp(big.NewInt(int64(alphabetSize)), big.NewInt(int64(missing)), nil)
	return n.Mul(n, big.NewInt(int64(missing+1)))
}

// Splits returns the splits of missing in increasing prefix order.
func Splits(missing int) []Split {
	if missing < 0 {
		return nil
	}
	splits := make([]Split, 0, missing+1)
	for i := 0; i <= missing; i++ {
		splits = append(splits, Split{Prefix: i, Suffix: missing - i})
	}
	return splits
}

// Candidates yields every candidate without deriving anything. The sequence
// can be ranged over more than once and yields the same order each time.
func (g *Generator) Candidates() iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for _, split := range Splits(g.missing) {
			g.log.Debug("enumerating split",
				zap.Stringer("split", split),
				zap.Int("prefix", split.Prefix),
				zap.Int("suffix", split.Suffix),
			)
			if !g.enumerate(split, yield) {
				return
			}
		}
	}
}

// enumerate drives an odometer over the free positions of one split. The
// prefix positions are the most significant digits so that every suffix is
// visited before the prefix advances.
func (g *Generator) enumerate(split Split, yield func(Candidate) bool) bool {
	buf := make([]byte, split.Prefix+len(g.known)+split.Suffix)
	copy(buf[split.Prefix:], g.known)

	free := make([]int, 0, split.Prefix+split.Suffix)
	for p := 0; p < split.Prefix; p++ {
		free = append(free, p)
	}
	for p := split.Prefix + len(g.known); p < len(buf); p++ {
		free = append(free, p)
	}
	for _, p := range free {
		buf[p] = g.alphabet[0]
	}
	digits := make([]int, len(free))

	for {
		if !yield(Candidate{Split: split, Value: string(buf)}) {
			return false
		}

		k := len(free) - 1
		for ; k >= 0; k-- {
			digits[k]++
			if digits[k] < len(g.alphabet) {
				buf[free[k]] = g.alphabet[digits[k]]
				break
			}
			digits[k] = 0
			buf[free[k]] = g.alphabet[0]
		}
		if k < 0 {
			return true
		}
	}
}

// Results derives the address of every candidate. A candidate that is not a
// valid private key produces a Result with Err set and the sweep goes on.
// If the emitter fails the sequence stops and Err reports why.
func (g *Generator) Results() iter.Seq[Result] {
	return func(yield func(Result) bool) {
		g.err = nil
		var stats Stats
		for c := range g.Candidates() {
			r := Result{Candidate: c}
			r.Address, r.Err = g.deriver.Address(c.Value)
			stats.add(r)

			if g.emit != nil {
				if err := g.emit(r); err != nil {
					g.err = fmt.Errorf("emit %s: %w", c.Value, err)
					return
				}
			}
			if g.progressEvery > 0 && stats.Candidates%g.progressEvery == 0 {
				g.log.Info("sweep progress",
					zap.Uint64("candidates", stats.Candidates),
					zap.Uint64("invalid", stats.Invalid),
					zap.Stringer("split", c.Split),
					zap.String("last", c.Value),
				)
			}
			if !yield(r) {
				return
			}
		}
	}
}

// Err returns the emitter failure that ended the last Results iteration.
func (g *Generator) Err() error { return g.err }

// Run streams every result through the emitter without keeping them.
func (g *Generator) Run() (Stats, error) {
	var stats Stats
	for r := range g.Results() {
		stats.add(r)
	}
	return stats, g.err
}

const maxCollectHint = 1 << 24

// Collect emits and keeps every result. Prefer Run or Results for large
// sweeps: the default configuration holds millions of entries.
func (g *Generator) Collect() ([]Result, error) {
	var results []Result
	if n := g.Count(); n.IsInt64() && n.Int64() <= maxCollectHint {
		results = make([]Result, 0, n.Int64())
	}
	for r := range g.Results() {
		results = append(results, r)
	}
	return results, g.err
}
