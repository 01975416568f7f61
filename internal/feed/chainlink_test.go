package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type callArgs struct {
	To    string        `json:"to"`
	Data  hexutil.Bytes `json:"data"`
	Input hexutil.Bytes `json:"input"`
}

// fakeNode answers eth_call for one AggregatorV3 at 8 decimals.
func fakeNode(t *testing.T, answer *big.Int) *httptest.Server {
	t.Helper()
	decimalsID := aggregatorV3ABI.Methods["decimals"].ID
	latestID := aggregatorV3ABI.Methods["latestRoundData"].ID

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode rpc request: %v", err)
			return
		}
		if req.Method != "eth_call" || len(req.Params) == 0 {
			t.Errorf("unexpected rpc method %s", req.Method)
			return
		}
		var args callArgs
		_ = json.Unmarshal(req.Params[0], &args)
		data := args.Input
		if len(data) == 0 {
			data = args.Data
		}

		var out []byte
		var err error
		switch {
		case bytes.HasPrefix(data, decimalsID):
			out, err = aggregatorV3ABI.Methods["decimals"].Outputs.Pack(uint8(8))
		case bytes.HasPrefix(data, latestID):
			out, err = aggregatorV3ABI.Methods["latestRoundData"].Outputs.Pack(
				big.NewInt(7), answer, big.NewInt(0), big.NewInt(0), big.NewInt(7))
		default:
			t.Errorf("unexpected selector %x", data)
		}
		if err != nil {
			t.Errorf("pack outputs: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  hexutil.Encode(out),
		})
	}))
}

func TestChainlinkMissingConfig(t *testing.T) {
	c := NewChainlink(ChainlinkOptions{}, noopLogger())
	if _, err := c.Prices(context.Background()); err == nil {
		t.Fatal("未配置 RPC 时应报错")
	}

	c = NewChainlink(ChainlinkOptions{RPCURL: "http://localhost"}, noopLogger())
	if _, err := c.Prices(context.Background()); err == nil {
		t.Fatal("缺少合约配置应报错")
	}
}

func TestChainlinkPrices(t *testing.T) {
	srv := fakeNode(t, big.NewInt(5_000_012_345_678))
	defer srv.Close()

	c := NewChainlink(ChainlinkOptions{
		RPCURL: srv.URL,
		Feeds:  []ChainlinkFeed{{ID: "btc", Name: "Bitcoin", Address: "0xF4030086522a5bEEa4988F8cA5B36dbC97BeE88c"}},
	}, noopLogger())
	defer c.Close()

	prices, err := c.Prices(context.Background())
	if err != nil {
		t.Fatalf("读取聚合器不应报错: %v", err)
	}
	if prices["BTC"] != "50000.12345678" {
		t.Fatalf("应按 8 位小数换算, 实际 %v", prices)
	}
	if v, err := ParsePrice(prices["BTC"]); err != nil || v <= 0 {
		t.Fatalf("链上价格应可被解析: %v", err)
	}

	// decimals is cached after the first read
	if len(c.decimals) != 1 {
		t.Fatalf("decimals 应被缓存, 实际 %d", len(c.decimals))
	}
}

func TestChainlinkRejectsNonPositiveAnswer(t *testing.T) {
	srv := fakeNode(t, big.NewInt(-1))
	defer srv.Close()

	c := NewChainlink(ChainlinkOptions{
		RPCURL: srv.URL,
		Feeds:  []ChainlinkFeed{{ID: "eth", Address: "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419"}},
	}, noopLogger())
	defer c.Close()

	if _, err := c.Prices(context.Background()); err == nil {
		t.Fatal("负数答案应报错")
	}
}
