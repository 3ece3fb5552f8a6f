// Package balance reads ETH and ERC-20 balances for swept addresses over
// JSON-RPC.
package balance

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

const erc20JSON = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"}
]`

// ERC20ABI covers the read-only calls the checker makes.
var ERC20ABI = mustParseABI(erc20JSON)

const etherDecimals = 18

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Client is the part of ethclient.Client the checker uses.
type Client interface {
	bind.ContractCaller
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type token struct {
	address  common.Address
	contract *bind.BoundContract
	decimals uint8
	loaded   bool
}

type Checker struct {
	client Client
	tokens []*token
}

// TokenBalance is the balanceOf result of one ERC-20 contract.
type TokenBalance struct {
	Token    common.Address
	Amount   *big.Int
	Decimals uint8
}

type Balance struct {
	Address common.Address
	Wei     *big.Int
	Tokens  []TokenBalance
}

// String renders `<address>=<ether>` followed by `,<token>#<amount>` for
// every token with a non-zero balance.
func (b Balance) String() string {
	var sb strings.Builder
	sb.WriteString(b.Address.Hex())
	sb.WriteByte('=')
	sb.WriteString(FormatUnits(b.Wei, etherDecimals))
	for _, t := range b.Tokens {
		if t.Amount.Sign() == 0 {
			continue
		}
		fmt.Fprintf(&sb, ",%s#%s", t.Token.Hex(), FormatUnits(t.Amount, t.Decimals))
	}
	return sb.String()
}

// Empty reports whether every balance is zero.
func (b Balance) Empty() bool {
	if b.Wei.Sign() != 0 {
		return false
	}
	for _, t := range b.Tokens {
		if t.Amount.Sign() != 0 {
			return false
		}
	}
	return true
}

func NewChecker(client Client, tokens []common.Address) *Checker {
	c := &Checker{client: client}
	for _, addr := range tokens {
		c.tokens = append(c.tokens, &token{
			address:  addr,
			contract: bind.NewBoundContract(addr, ERC20ABI, client, nil, nil),
		})
	}
	return c
}

// Check reads the latest ETH balance of address and its balance in every
// configured token. Token decimals are read once per checker.
func (c *Checker) Check(ctx context.Context, address common.Address) (Balance, error) {
	wei, err := c.client.BalanceAt(ctx, address, nil)
	if err != nil {
		return Balance{}, fmt.Errorf("balance of %s: %w", address.Hex(), err)
	}

	b := Balance{Address: address, Wei: wei}
	opts := &bind.CallOpts{Context: ctx}
	for _, t := range c.tokens {
		if !t.loaded {
			var out []interface{}
			if err := t.contract.Call(opts, &out, "decimals"); err != nil {
				return Balance{}, fmt.Errorf("decimals of %s: %w", t.address.Hex(), err)
			}
			t.decimals = *abi.ConvertType(out[0], new(uint8)).(*uint8)
			t.loaded = true
		}

		var out []interface{}
		if err := t.contract.Call(opts, &out, "balanceOf", address); err != nil {
			return Balance{}, fmt.Errorf("balanceOf %s on %s: %w", address.Hex(), t.address.Hex(), err)
		}
		b.Tokens = append(b.Tokens, TokenBalance{
			Token:    t.address,
			Amount:   *abi.ConvertType(out[0], new(*big.Int)).(**big.Int),
			Decimals: t.decimals,
		})
	}
	return b, nil
}

// FormatUnits renders amount / 10^decimals exactly, without trailing zeros.
func FormatUnits(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	s := new(big.Rat).SetFrac(amount, denom).FloatString(int(decimals))
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}
