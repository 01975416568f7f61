package cli

import (
	"bytes"
	"encoding/json"
	"runtime"
	"testing"

	"stratum/internal/version"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version", "--json", "--config", "/nonexistent/stratum.yaml"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		versionJSON = false
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("version 不应依赖配置文件: %v", err)
	}
	var info version.Info
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("--json 输出应为 JSON: %v (%q)", err, out.String())
	}
	if info.Name != "stratum" || info.GoVersion != runtime.Version() {
		t.Fatalf("构建信息错误: %+v", info)
	}
}
