package feed

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	aggregatorV3ABIJSON = `[{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},{"inputs":[],"name":"latestRoundData","outputs":[{"internalType":"uint80","name":"roundId","type":"uint80"},{"internalType":"int256","name":"answer","type":"int256"},{"internalType":"uint256","name":"startedAt","type":"uint256"},{"internalType":"uint256","name":"updatedAt","type":"uint256"},{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"}]`
)

var (
	aggregatorV3ABI abi.ABI
)

func init() {
	parsed, err := abi.JSON(strings.NewReader(aggregatorV3ABIJSON))
	if err != nil {
		panic("failed to parse AggregatorV3 ABI: " + err.Error())
	}
	aggregatorV3ABI = parsed
}

// ChainlinkFeed binds an instrument to an AggregatorV3 contract.
type ChainlinkFeed struct {
	ID      string
	Name    string
	Address string
}

// ChainlinkOptions parameterise the on-chain feed.
type ChainlinkOptions struct {
	RPCURL  string
	Timeout time.Duration
	Feeds   []ChainlinkFeed
}

// Chainlink reads latest answers from Chainlink price aggregators.
type Chainlink struct {
	opts      ChainlinkOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
	decimals  map[common.Address]uint8
}

// NewChainlink builds an on-chain feed.
func NewChainlink(opts ChainlinkOptions, logger zerolog.Logger) *Chainlink {
	return &Chainlink{
		opts:     opts,
		logger:   logger.With().Str("component", "chainlink_feed").Logger(),
		decimals: make(map[common.Address]uint8),
	}
}

// Instruments returns the configured feeds.
func (c *Chainlink) Instruments(ctx context.Context) ([]Instrument, error) {
	out := make([]Instrument, 0, len(c.opts.Feeds))
	for _, f := range c.opts.Feeds {
		out = append(out, Instrument{ID: f.ID, Name: f.Name})
	}
	return out, nil
}

// Prices reads every configured aggregator. A failing aggregator is logged
// and omitted; the call fails only when none answered.
func (c *Chainlink) Prices(ctx context.Context) (map[string]string, error) {
	if c.opts.RPCURL == "" {
		return nil, errors.New("ethereum rpc url not configured")
	}
	if len(c.opts.Feeds) == 0 {
		return nil, errors.New("no chainlink feeds configured")
	}

	timeout := c.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := c.getClient(ctx)
	if err != nil {
		return nil, err
	}

	prices := make(map[string]string, len(c.opts.Feeds))
	var lastErr error
	for _, f := range c.opts.Feeds {
		price, err := c.latest(ctx, client, common.HexToAddress(f.Address))
		if err != nil {
			lastErr = err
			c.logger.Warn().Err(err).Str("instrument", f.ID).Str("address", f.Address).Msg("read aggregator failed")
			continue
		}
		prices[strings.ToUpper(f.ID)] = price.String()
	}
	if len(prices) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return prices, nil
}

func (c *Chainlink) latest(ctx context.Context, client *ethclient.Client, addr common.Address) (decimal.Decimal, error) {
	scale, err := c.decimalsOf(ctx, client, addr)
	if err != nil {
		return decimal.Decimal{}, err
	}

	outputs, err := call(ctx, client, addr, "latestRoundData")
	if err != nil {
		return decimal.Decimal{}, err
	}
	if len(outputs) != 5 {
		return decimal.Decimal{}, errors.New("unexpected latestRoundData response")
	}
	answer, ok := outputs[1].(*big.Int)
	if !ok {
		return decimal.Decimal{}, errors.New("failed to decode latestRoundData answer")
	}
	if answer.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: aggregator answer %s", ErrInvalidPrice, answer)
	}
	return decimal.NewFromBigInt(answer, -int32(scale)), nil
}

func (c *Chainlink) decimalsOf(ctx context.Context, client *ethclient.Client, addr common.Address) (uint8, error) {
	c.clientMux.Lock()
	d, ok := c.decimals[addr]
	c.clientMux.Unlock()
	if ok {
		return d, nil
	}

	outputs, err := call(ctx, client, addr, "decimals")
	if err != nil {
		return 0, err
	}
	if len(outputs) != 1 {
		return 0, errors.New("unexpected decimals response")
	}
	d, ok = outputs[0].(uint8)
	if !ok {
		return 0, errors.New("failed to decode decimals output")
	}

	c.clientMux.Lock()
	c.decimals[addr] = d
	c.clientMux.Unlock()
	return d, nil
}

func call(ctx context.Context, client *ethclient.Client, addr common.Address, method string) ([]interface{}, error) {
	payload, err := aggregatorV3ABI.Pack(method)
	if err != nil {
		return nil, err
	}
	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return aggregatorV3ABI.Unpack(method, res)
}

func (c *Chainlink) getClient(ctx context.Context) (*ethclient.Client, error) {
	c.clientMux.Lock()
	defer c.clientMux.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	client, err := ethclient.DialContext(ctx, c.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

// Close releases the RPC connection.
func (c *Chainlink) Close() {
	c.clientMux.Lock()
	defer c.clientMux.Unlock()
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
}

var _ PriceFeed = (*Chainlink)(nil)
