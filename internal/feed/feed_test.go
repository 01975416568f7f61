package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"stratum/internal/config"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestParsePrice(t *testing.T) {
	v, err := ParsePrice(" 50000.25 ")
	if err != nil || v != 50000.25 {
		t.Fatalf("期望 50000.25, 实际 %v %v", v, err)
	}
	for _, raw := range []string{"", "abc", "0", "-1", "0.000"} {
		if _, err := ParsePrice(raw); !errors.Is(err, ErrInvalidPrice) {
			t.Fatalf("%q 应返回 ErrInvalidPrice, 实际 %v", raw, err)
		}
	}
}

func TestLookupUpperCasesSymbol(t *testing.T) {
	prices := map[string]string{"BTC": "1", "eth": "2"}
	if v, ok := Lookup(prices, "btc"); !ok || v != "1" {
		t.Fatal("应按大写符号查找")
	}
	if v, ok := Lookup(prices, "eth"); !ok || v != "2" {
		t.Fatal("大写未命中时应回退原始 id")
	}
	if _, ok := Lookup(prices, "sol"); ok {
		t.Fatal("缺失符号不应命中")
	}
}

func TestStaticReplaysAndRepeatsLast(t *testing.T) {
	ctx := context.Background()
	s := NewStatic([]Instrument{{ID: "btc", Name: "Bitcoin"}},
		map[string]string{"BTC": "1"},
		map[string]string{"BTC": "2"},
	)
	if s.Remaining() != 2 {
		t.Fatalf("初始剩余应为 2, 实际 %d", s.Remaining())
	}
	for _, want := range []string{"1", "2", "2"} {
		got, err := s.Prices(ctx)
		if err != nil || got["BTC"] != want {
			t.Fatalf("期望 %s, 实际 %v %v", want, got, err)
		}
	}
	if s.Remaining() != 0 {
		t.Fatal("序列耗尽后剩余应为 0")
	}

	got, _ := s.Prices(ctx)
	got["BTC"] = "mutated"
	if again, _ := s.Prices(ctx); again["BTC"] != "2" {
		t.Fatal("返回的表应为副本")
	}

	inst, _ := s.Instruments(ctx)
	if len(inst) != 1 || inst[0].Name != "Bitcoin" {
		t.Fatalf("instruments 错误: %+v", inst)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := s.Prices(cancelled); err == nil {
		t.Fatal("已取消的 context 应报错")
	}
}

func TestNewSelectsDriver(t *testing.T) {
	f, err := New(config.FeedConfig{Driver: config.FeedHTTP}, noopLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := f.(*HTTP); !ok {
		t.Fatalf("http 驱动应返回 *HTTP, 实际 %T", f)
	}

	f, err = New(config.FeedConfig{Driver: config.FeedChainlink, Chainlink: config.ChainlinkConfig{
		RPCURL: "http://localhost",
		Feeds:  []config.ChainlinkInstrument{{ID: "eth", Name: "Ether", Address: "0x1"}},
	}}, noopLogger())
	if err != nil {
		t.Fatal(err)
	}
	inst, _ := f.Instruments(context.Background())
	if len(inst) != 1 || inst[0].ID != "eth" {
		t.Fatalf("chainlink 应返回配置的 instruments: %+v", inst)
	}

	if _, err := New(config.FeedConfig{Driver: "ftp"}, noopLogger()); err == nil {
		t.Fatal("未知驱动应报错")
	}
}
