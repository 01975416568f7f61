package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("默认配置应可加载: %v", err)
	}
	if cfg.Scheduler.Interval != time.Second {
		t.Fatalf("默认轮询间隔应为 1s, 实际 %s", cfg.Scheduler.Interval)
	}
	if cfg.Trend.Capacity != 50 || cfg.Candles.Capacity != 30 {
		t.Fatalf("默认容量错误: trend=%d candles=%d", cfg.Trend.Capacity, cfg.Candles.Capacity)
	}
	if cfg.Chart.GridLines != 6 || cfg.Chart.SmoothingFactor != 0.3 || cfg.Chart.PaddingRatio != 0.05 {
		t.Fatalf("图表默认值错误: %+v", cfg.Chart)
	}
	if cfg.Chart.Padding.Right != 60 {
		t.Fatalf("默认右边距应为 60, 实际 %v", cfg.Chart.Padding.Right)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`
scheduler:
  interval: 2s
storage:
  driver: memory
candles:
  mode: interval
  interval: 5m
feed:
  driver: chainlink
  chainlink:
    rpc_url: http://localhost:8545
    feeds:
      - id: ETH
        name: Ethereum
        address: "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419"
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Scheduler.Interval != 2*time.Second || cfg.Candles.Interval != 5*time.Minute {
		t.Fatalf("时长解析错误: %s %s", cfg.Scheduler.Interval, cfg.Candles.Interval)
	}
	if len(cfg.Feed.Chainlink.Feeds) != 1 || cfg.Feed.Chainlink.Feeds[0].ID != "ETH" {
		t.Fatalf("chainlink feeds 解析错误: %+v", cfg.Feed.Chainlink.Feeds)
	}
}

func TestValidateRejectsFastPolling(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("加载默认配置失败: %v", err)
	}

	cfg.Scheduler.Interval = 100 * time.Millisecond
	if err := cfg.Validate(); err == nil {
		t.Fatal("100ms 轮询应被拒绝")
	}

	cfg.Scheduler.Interval = 300 * time.Millisecond
	if err := cfg.Validate(); err != nil {
		t.Fatalf("300ms 应被接受: %v", err)
	}
	if !cfg.AggressivePolling() {
		t.Fatal("300ms 应被标记为过快轮询")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("加载默认配置失败: %v", err)
	}

	bad := *cfg
	bad.Chart.SmoothingFactor = 1
	if err := bad.Validate(); err == nil {
		t.Fatal("smoothing_factor=1 应被拒绝")
	}

	bad = *cfg
	bad.Storage.Driver = "redis"
	if err := bad.Validate(); err == nil {
		t.Fatal("未知存储驱动应被拒绝")
	}

	bad = *cfg
	bad.Candles.Mode = "hourly"
	if err := bad.Validate(); err == nil {
		t.Fatal("未知聚合模式应被拒绝")
	}
}
