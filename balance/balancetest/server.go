// Package balancetest serves a tiny Ethereum JSON-RPC endpoint for tests.
package balancetest

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/apottere/go-key-recovery/balance"
)

// Token is an ERC-20 contract known to the server.
type Token struct {
	Decimals uint8
	Balances map[common.Address]*big.Int
}

// Server answers eth_getBalance and eth_call (decimals, balanceOf).
// Unknown accounts have a zero balance.
type Server struct {
	*httptest.Server

	Ether  map[common.Address]*big.Int
	Tokens map[common.Address]Token

	mu    sync.Mutex
	calls map[string]int
}

func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		Ether:  map[common.Address]*big.Int{},
		Tokens: map[common.Address]Token{},
		calls:  map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Calls returns how often method was requested.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

type request struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type callArgs struct {
	To    common.Address `json:"to"`
	Input hexutil.Bytes  `json:"input"`
	Data  hexutil.Bytes  `json:"data"`
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls[req.Method]++
	s.mu.Unlock()

	result, err := s.handle(req)
	resp := response{JSONRPC: "2.0", ID: req.ID, Result: result}
	if err != nil {
		resp.Result = nil
		resp.Error = &rpcError{Code: -32000, Message: err.Error()}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handle(req request) (interface{}, error) {
	switch req.Method {
	case "eth_getBalance":
		var account common.Address
		if err := json.Unmarshal(req.Params[0], &account); err != nil {
			return nil, err
		}
		return (*hexutil.Big)(orZero(s.Ether[account])), nil

	case "eth_call":
		var args callArgs
		if err := json.Unmarshal(req.Params[0], &args); err != nil {
			return nil, err
		}
		data := args.Input
		if len(data) == 0 {
			data = args.Data
		}
		return s.call(args.To, data)

	default:
		return nil, &methodError{req.Method}
	}
}

func (s *Server) call(to common.Address, data []byte) (interface{}, error) {
	tok, ok := s.Tokens[to]
	if !ok || len(data) < 4 {
		return hexutil.Bytes{}, nil
	}
	method, err := balance.ERC20ABI.MethodById(data[:4])
	if err != nil {
		return nil, err
	}

	var out []byte
	switch method.Name {
	case "decimals":
		out, err = method.Outputs.Pack(tok.Decimals)
	case "balanceOf":
		args, uerr := method.Inputs.Unpack(data[4:])
		if uerr != nil {
			return nil, uerr
		}
		out, err = method.Outputs.Pack(orZero(tok.Balances[args[0].(common.Address)]))
	}
	if err != nil {
		return nil, err
	}
	return hexutil.Bytes(out), nil
}

type methodError struct{ method string }

func (e *methodError) Error() string { return "method not found: " + e.method }

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
