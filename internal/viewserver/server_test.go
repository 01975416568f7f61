package viewserver

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"stratum/internal/candle"
	"stratum/internal/config"
	"stratum/internal/dashboard"
	"stratum/internal/feed"
	"stratum/internal/kvstore"
	"stratum/internal/render"
	"stratum/internal/scheduler"
	"stratum/internal/trend"
)

func newTestServer(t *testing.T, interval time.Duration) (*Server, *dashboard.Dashboard, *httptest.Server) {
	t.Helper()
	f := feed.NewStatic(
		[]feed.Instrument{{ID: "btc", Name: "Bitcoin"}, {ID: "eth", Name: "Ethereum"}},
		map[string]string{"BTC": "100", "ETH": "10"},
		map[string]string{"BTC": "110", "ETH": "10"},
	)
	d := dashboard.New(f, trend.New(kvstore.NewMemory(), 5, zerolog.Nop()), dashboard.Options{
		Scheduler:   scheduler.Options{Interval: interval, Immediate: true},
		Candles:     candle.Options{Mode: candle.ModeTick},
		Chart:       render.DefaultConfig(),
		DefaultSize: render.Size{Width: 200, Height: 120, DPR: 1},
	}, zerolog.Nop())
	if err := d.LoadInstruments(context.Background()); err != nil {
		t.Fatal(err)
	}

	icons := t.TempDir()
	_ = os.WriteFile(filepath.Join(icons, "btc.svg"), []byte("<svg>btc</svg>"), 0o644)
	_ = os.WriteFile(filepath.Join(icons, "default.svg"), []byte("<svg>default</svg>"), 0o644)

	sparkline := render.NewSparklineRenderer(config.SparklineConfig{Width: 100, Height: 60, PaddingX: 5, PaddingY: 5})
	s := New(d, sparkline, icons, zerolog.Nop())
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		d.Stop()
	})
	return s, d, srv
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, body
}

func TestInstrumentsAndCards(t *testing.T) {
	_, d, srv := newTestServer(t, time.Hour)
	ctx := context.Background()
	_ = d.Poll(ctx, time.Now())
	_ = d.Poll(ctx, time.Now())

	resp, body := get(t, srv.URL+"/api/instruments")
	var inst []feed.Instrument
	if resp.StatusCode != http.StatusOK || json.Unmarshal(body, &inst) != nil || len(inst) != 2 {
		t.Fatalf("instruments 响应错误: %d %s", resp.StatusCode, body)
	}

	_, body = get(t, srv.URL+"/api/cards?q=bit")
	var cards []dashboard.Card
	if err := json.Unmarshal(body, &cards); err != nil || len(cards) != 1 {
		t.Fatalf("cards 搜索错误: %s", body)
	}
	if cards[0].Price != 110 || cards[0].ChangePercent != 10 {
		t.Fatalf("卡片价格/涨幅错误: %+v", cards[0])
	}

	resp, _ = get(t, srv.URL+"/api/cards/ETH")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("单卡查询应成功, 实际 %d", resp.StatusCode)
	}
	resp, _ = get(t, srv.URL+"/api/cards/xrp")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("未知币种应 404, 实际 %d", resp.StatusCode)
	}
}

func TestSparklineSVG(t *testing.T) {
	_, d, srv := newTestServer(t, time.Hour)

	resp, _ := get(t, srv.URL+"/sparkline/btc.svg")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("无数据时应返回 204, 实际 %d", resp.StatusCode)
	}

	_ = d.Poll(context.Background(), time.Now())
	resp, body := get(t, srv.URL+"/sparkline/btc.svg")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "<svg") {
		t.Fatalf("应返回 SVG: %d %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Fatalf("Content-Type 错误: %s", ct)
	}

	resp, _ = get(t, srv.URL+"/sparkline/btc.png")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("非 svg 后缀应 404, 实际 %d", resp.StatusCode)
	}
}

func TestIconFallback(t *testing.T) {
	_, _, srv := newTestServer(t, time.Hour)

	_, body := get(t, srv.URL+"/icons/BTC.svg")
	if string(body) != "<svg>btc</svg>" {
		t.Fatalf("应返回小写文件名对应图标: %s", body)
	}
	_, body = get(t, srv.URL+"/icons/xrp.svg")
	if string(body) != "<svg>default</svg>" {
		t.Fatalf("缺失图标应回退 default.svg: %s", body)
	}
}

func TestChartWebsocket(t *testing.T) {
	_, d, srv := newTestServer(t, 20*time.Millisecond)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chart/BTC?width=160&height=100"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket 连接失败: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello viewHello
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatal(err)
	}
	if hello.ID != "btc" || hello.Name != "Bitcoin" || hello.View == "" {
		t.Fatalf("握手消息错误: %+v", hello)
	}

	kind, payload, err := conn.ReadMessage()
	if err != nil || kind != websocket.BinaryMessage {
		t.Fatalf("应收到二进制帧: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(payload))
	if err != nil || img.Bounds().Dx() != 160 {
		t.Fatalf("首帧应为 160px 宽 PNG: %v", err)
	}

	if err := conn.WriteJSON(render.Size{Width: 320, Height: 200, DPR: 1}); err != nil {
		t.Fatal(err)
	}
	resized := false
	for i := 0; i < 20 && !resized; i++ {
		_, payload, err = conn.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		img, err = png.Decode(bytes.NewReader(payload))
		if err != nil {
			t.Fatal(err)
		}
		resized = img.Bounds().Dx() == 320
	}
	if !resized {
		t.Fatal("resize 消息应触发新尺寸的帧")
	}
	if len(d.Views()) != 1 {
		t.Fatalf("连接期间应有一个视图, 实际 %d", len(d.Views()))
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for len(d.Views()) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("断开连接后视图应被关闭")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
