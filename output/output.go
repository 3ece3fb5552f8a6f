// Package output writes sweep results as text lines and reads them back.
package output

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/apottere/go-key-recovery/keys"
	"github.com/apottere/go-key-recovery/sweep"
)

const (
	separator   = " -> "
	errorMarker = "error: "
)

// FormatLine renders `<candidate> -> <address>`, or an error marker in place
// of the address so that every candidate gets exactly one line.
func FormatLine(candidate, address string, err error) string {
	if err != nil {
		return candidate + separator + errorMarker + reason(err)
	}
	return candidate + separator + address
}

func reason(err error) string {
	if errors.Is(err, keys.ErrInvalidPrivateKey) {
		return keys.ErrInvalidPrivateKey.Error()
	}
	return err.Error()
}

// ParseLine splits a line written by FormatLine. ok is false for error lines
// and for anything that is not a sweep line.
func ParseLine(line string) (candidate, address string, ok bool) {
	candidate, address, found := strings.Cut(strings.TrimSpace(line), separator)
	if !found || candidate == "" || address == "" || strings.HasPrefix(address, errorMarker) {
		return "", "", false
	}
	return candidate, address, true
}

// NormalizeAddress lower-cases an address and drops any 0x prefix.
func NormalizeAddress(address string) string {
	address = strings.ToLower(strings.TrimSpace(address))
	return strings.TrimPrefix(address, "0x")
}

// Writer is a buffered sweep.Emitter.
type Writer struct {
	w     *bufio.Writer
	lines uint64
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, 64*1024)}
}

func (w *Writer) Write(r sweep.Result) error {
	if _, err := w.w.WriteString(FormatLine(r.Value, r.Address, r.Err)); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.lines++
	return nil
}

func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Lines is the number of lines written so far.
func (w *Writer) Lines() uint64 {
	return w.lines
}

type Match struct {
	Line      int
	Candidate string
	Address   string
}

// Lookup scans a sweep output for the given addresses. Addresses compare
// case-insensitively and with or without the 0x prefix.
func Lookup(r io.Reader, addresses []string) ([]Match, error) {
	wanted := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		wanted[NormalizeAddress(a)] = struct{}{}
	}
	return scan(r, func(m Match) bool {
		_, hit := wanted[NormalizeAddress(m.Address)]
		return hit
	})
}

// Entries returns every derived line of a sweep output, skipping error lines.
func Entries(r io.Reader) ([]Match, error) {
	return scan(r, func(Match) bool { return true })
}

func scan(r io.Reader, keep func(Match) bool) ([]Match, error) {
	var matches []Match
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanLines)
	for n := 1; scanner.Scan(); n++ {
		candidate, address, ok := ParseLine(scanner.Text())
		if !ok {
			continue
		}
		m := Match{Line: n, Candidate: candidate, Address: address}
		if keep(m) {
			matches = append(matches, m)
		}
	}
	if err := scanner.Err(); err != nil {
		return matches, fmt.Errorf("read sweep output: %w", err)
	}
	return matches, nil
}
