package balance_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apottere/go-key-recovery/balance"
	"github.com/apottere/go-key-recovery/balance/balancetest"
)

var (
	holder = common.HexToAddress("0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf")
	empty  = common.HexToAddress("0x2B5AD5c4795c026514f8317c7a215E218DcCD6cF")
	usdt   = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
)

func dial(t *testing.T, srv *balancetest.Server) *ethclient.Client {
	t.Helper()
	client, err := ethclient.DialContext(context.Background(), srv.URL)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestCheckEther(t *testing.T) {
	srv := balancetest.NewServer(t)
	srv.Ether[holder], _ = new(big.Int).SetString("1500000000000000000", 10)

	checker := balance.NewChecker(dial(t, srv), nil)

	b, err := checker.Check(context.Background(), holder)
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", b.Wei.String())
	assert.False(t, b.Empty())
	assert.Equal(t, "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf=1.5", b.String())

	b, err = checker.Check(context.Background(), empty)
	require.NoError(t, err)
	assert.True(t, b.Empty())
	assert.Equal(t, "0x2B5AD5c4795c026514f8317c7a215E218DcCD6cF=0", b.String())
}

func TestCheckTokens(t *testing.T) {
	srv := balancetest.NewServer(t)
	srv.Tokens[usdt] = balancetest.Token{
		Decimals: 6,
		Balances: map[common.Address]*big.Int{holder: big.NewInt(12_345_000)},
	}

	checker := balance.NewChecker(dial(t, srv), []common.Address{usdt})

	b, err := checker.Check(context.Background(), holder)
	require.NoError(t, err)
	require.Len(t, b.Tokens, 1)
	assert.Equal(t, uint8(6), b.Tokens[0].Decimals)
	assert.Equal(t, "12345000", b.Tokens[0].Amount.String())
	assert.Equal(t, "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf=0,0xdAC17F958D2ee523a2206206994597C13D831ec7#12.345", b.String())

	b, err = checker.Check(context.Background(), empty)
	require.NoError(t, err)
	assert.True(t, b.Empty())

	assert.Equal(t, 2, srv.Calls("eth_getBalance"))
	assert.Equal(t, 3, srv.Calls("eth_call"), "decimals is read once")
}

func TestCheckRPCError(t *testing.T) {
	srv := balancetest.NewServer(t)
	unknown := common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f")

	checker := balance.NewChecker(dial(t, srv), []common.Address{unknown})
	_, err := checker.Check(context.Background(), holder)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decimals of")
}

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		amount   int64
		decimals uint8
		want     string
	}{
		{0, 18, "0"},
		{1, 18, "0.000000000000000001"},
		{1_000_000, 6, "1"},
		{1_500_000, 6, "1.5"},
		{42, 0, "42"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, balance.FormatUnits(big.NewInt(tt.amount), tt.decimals))
	}
	assert.Equal(t, "0", balance.FormatUnits(nil, 18))
}
