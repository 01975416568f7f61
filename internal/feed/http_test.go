package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/price" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); ua != "test" {
			t.Errorf("unexpected user agent %q", ua)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"BTC":"50000.5","ETH":3000.25,"NIL":null}`))
	}))
	defer srv.Close()

	h := NewHTTP(HTTPOptions{BaseURL: srv.URL + "/", Timeout: time.Second, UserAgent: "test"}, noopLogger())
	prices, err := h.Prices(context.Background())
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if prices["BTC"] != "50000.5" || prices["ETH"] != "3000.25" {
		t.Fatalf("字符串与数值价格都应保留字面值: %v", prices)
	}
	if _, ok := prices["NIL"]; ok {
		t.Fatal("null 价格应被忽略")
	}
}

func TestHTTPInstrumentsArrayAndObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/coins":
			_, _ = w.Write([]byte(`[{"id":"btc","name":"Bitcoin"},{"id":"eth","name":"Ethereum"}]`))
		case "/names":
			_, _ = w.Write([]byte(`{"sol":"Solana","ada":"Cardano"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	h := NewHTTP(HTTPOptions{BaseURL: srv.URL, InstrumentsPath: "coins"}, noopLogger())
	inst, err := h.Instruments(context.Background())
	if err != nil || len(inst) != 2 || inst[1].Name != "Ethereum" {
		t.Fatalf("数组格式解析错误: %+v %v", inst, err)
	}

	h = NewHTTP(HTTPOptions{BaseURL: srv.URL, InstrumentsPath: "/names"}, noopLogger())
	inst, err = h.Instruments(context.Background())
	if err != nil || len(inst) != 2 || inst[0].ID != "ada" {
		t.Fatalf("对象格式应按 id 排序: %+v %v", inst, err)
	}
}

func TestHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "slow down"})
	}))
	defer srv.Close()

	h := NewHTTP(HTTPOptions{BaseURL: srv.URL}, noopLogger())
	_, err := h.Prices(context.Background())
	if err == nil || !strings.Contains(err.Error(), "slow down") || !strings.Contains(err.Error(), "429") {
		t.Fatalf("HTTP 429 应返回带消息的错误, 实际 %v", err)
	}
}

func TestHTTPMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	h := NewHTTP(HTTPOptions{BaseURL: srv.URL}, noopLogger())
	if _, err := h.Prices(context.Background()); err == nil {
		t.Fatal("非法 JSON 应报错")
	}
}

func TestParseHTTPErrorFallbacks(t *testing.T) {
	if err := parseHTTPError(500, nil); err.Error() != "price api error (500)" {
		t.Fatalf("空响应体: %v", err)
	}
	if err := parseHTTPError(502, []byte(" bad gateway ")); !strings.HasSuffix(err.Error(), ": bad gateway") {
		t.Fatalf("纯文本响应体: %v", err)
	}
	if err := parseHTTPError(400, []byte(`{"error":"bad symbol"}`)); !strings.Contains(err.Error(), "bad symbol") {
		t.Fatalf("error 字段: %v", err)
	}
}
