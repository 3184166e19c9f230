package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestChildLoggersCarryContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core)).Named("feed").With(String("owner", "u1"))

	log.Info("subscribed", Bool("resumed", false))
	log.Debugf("channel %s", "bookmarks:uid:u1")

	entries := logs.AllUntimed()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	first := entries[0]
	if first.LoggerName != "feed" {
		t.Errorf("LoggerName = %q, want feed", first.LoggerName)
	}
	ctx := first.ContextMap()
	if ctx["owner"] != "u1" || ctx["resumed"] != false {
		t.Errorf("context = %v", ctx)
	}
	if entries[1].Message != "channel bookmarks:uid:u1" {
		t.Errorf("Message = %q", entries[1].Message)
	}
}

func TestNewRespectsLevel(t *testing.T) {
	tests := []struct {
		level string
		debug bool
	}{
		{"debug", true},
		{"warn", false},
		{"bogus", false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, ok := New(tt.level, false).(*loggerImpl)
			if !ok {
				t.Fatal("New() did not return *loggerImpl")
			}
			if got := l.base.Core().Enabled(zapcore.DebugLevel); got != tt.debug {
				t.Errorf("debug enabled = %v, want %v", got, tt.debug)
			}
		})
	}
}
