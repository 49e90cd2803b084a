package instance_test

import (
	"reflect"
	"testing"

	"github.com/hpcmsg/muscore/instance"
)

func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := instance.ParseFlags(nil)
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if cfg.ManagerAddr != "localhost:9000" {
		t.Errorf("ManagerAddr = %q, want default", cfg.ManagerAddr)
	}
}

func TestParseFlagsLeavesUnmatchedArgsAlone(t *testing.T) {
	argv := []string{
		"--model-param=42",
		"--muscle-manager=10.0.0.1:9100",
		"--muscle-index=3,7",
		"--muscle-log-file=/var/log/run",
		"--another-user-flag",
	}
	cfg, err := instance.ParseFlags(argv)
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if cfg.ManagerAddr != "10.0.0.1:9100" {
		t.Errorf("ManagerAddr = %q", cfg.ManagerAddr)
	}
	if !reflect.DeepEqual(cfg.Index, []int{3, 7}) {
		t.Errorf("Index = %v, want [3 7]", cfg.Index)
	}
	if cfg.LogFile != "/var/log/run" {
		t.Errorf("LogFile = %q", cfg.LogFile)
	}
}

func TestParseFlagsRejectsBadIndex(t *testing.T) {
	if _, err := instance.ParseFlags([]string{"--muscle-index=a,b"}); err == nil {
		t.Fatalf("expected an error for a non-integer --muscle-index")
	}
}
