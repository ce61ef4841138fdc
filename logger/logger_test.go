package logger

import (
	"os"
	"testing"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	// Ensure environment variables do not override the provided level
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestWithEnv(t *testing.T) {
	os.Setenv("FOO", "bar")
	log := Logger()
	entry := log.WithEnv("FOO")
	if v, ok := entry.Entry.Data["FOO"]; !ok || v != "bar" {
		t.Fatalf("env field not set: %v", entry.Entry.Data)
	}
}

func TestChannelCounters(t *testing.T) {
	IncrementStreamRead(128)
	IncrementHistoryRead(256)
	RecordChannelMessage("ticks", 64)

	for _, name := range []string{"stream_ws", "history_rest", "ticks"} {
		v, ok := channels.Load(name)
		if !ok {
			t.Fatalf("channel %s not recorded", name)
		}
		cs := v.(*channelStat)
		if cs.messages == 0 || cs.bytes == 0 {
			t.Errorf("channel %s has empty counters: %+v", name, cs)
		}
	}
}
