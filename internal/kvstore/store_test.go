package kvstore

import (
	"context"
	"path/filepath"
	"testing"

	"stratum/internal/config"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, found, err := s.Get(ctx, SparklineKey("BTC")); err != nil || found {
		t.Fatalf("空存储不应命中: found=%v err=%v", found, err)
	}
	if err := s.Set(ctx, SparklineKey("BTC"), "[1,2,3]"); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := s.Set(ctx, SparklineKey("BTC"), "[4,5]"); err != nil {
		t.Fatalf("覆盖写入失败: %v", err)
	}
	v, found, err := s.Get(ctx, SparklineKey("BTC"))
	if err != nil || !found || v != "[4,5]" {
		t.Fatalf("应读到最后一次写入: %q found=%v err=%v", v, found, err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kv.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("打开 sqlite 失败: %v", err)
	}
	exerciseStore(t, s)
	if err := s.Close(); err != nil {
		t.Fatalf("关闭失败: %v", err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("重新打开失败: %v", err)
	}
	defer reopened.Close()
	v, found, err := reopened.Get(context.Background(), SparklineKey("BTC"))
	if err != nil || !found || v != "[4,5]" {
		t.Fatalf("重启后数据应保留: %q found=%v err=%v", v, found, err)
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	s, closer, err := Open(context.Background(), config.StorageConfig{Driver: config.StorageMemory})
	if err != nil {
		t.Fatalf("memory 驱动不应报错: %v", err)
	}
	defer closer()
	if _, ok := s.(*Memory); !ok {
		t.Fatalf("期望 *Memory, 实际 %T", s)
	}

	if _, _, err := Open(context.Background(), config.StorageConfig{Driver: "redis"}); err == nil {
		t.Fatal("未知驱动应报错")
	}
	if _, _, err := Open(context.Background(), config.StorageConfig{Driver: config.StoragePostgres}); err == nil {
		t.Fatal("缺少 DSN 应报错")
	}
}

func TestNilPostgresNotConfigured(t *testing.T) {
	var s *Postgres
	if _, _, err := s.Get(context.Background(), "k"); err != ErrNotConfigured {
		t.Fatalf("期望 ErrNotConfigured, 实际 %v", err)
	}
}

func TestKeys(t *testing.T) {
	if SparklineKey("ETH") != "sparkline_ETH" || ChangeKey("ETH") != "change_ETH" || BasePriceKey("ETH") != "basePrice_ETH" {
		t.Fatal("键格式错误")
	}
}
