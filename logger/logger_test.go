package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require := require.New(t)

	tests := []struct {
		input    string
		expected Level
		isErr    bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{" warn ", WarnLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"fatal", FatalLevel, false},
		{"verbose", InfoLevel, true},
	}

	for _, tt := range tests {
		t.Logf("Test #%q", tt.input)
		level, err := ParseLevel(tt.input)
		if tt.isErr {
			require.Error(err)
		} else {
			require.NoError(err)
		}
		require.Equal(tt.expected, level)
	}

	require.Equal("warn", WarnLevel.String())
	require.Equal("Level(9)", Level(9).String())
}

func TestSlogLogger_JSON(t *testing.T) {
	require := require.New(t)
	t.Setenv("ENV", "")
	t.Setenv("LOG_FORMAT", "")

	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false)

	l.Debug("hidden")
	require.Zero(buf.Len())

	l.With("conn_id", "abc").Info("link active", "remote", "127.0.0.1:2404")

	var rec map[string]any
	require.NoError(json.Unmarshal(buf.Bytes(), &rec))
	require.Equal("link active", rec["msg"])
	require.Equal("abc", rec["conn_id"])
	require.Equal("127.0.0.1:2404", rec["remote"])
	require.Contains(rec, "ts")
	require.NotContains(rec, "time")
}

func TestSlogLogger_Level(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	l := NewSlogWriter(&buf, WarnLevel, false)
	require.Equal(WarnLevel, l.Level())

	child := l.With("k", "v")
	l.SetLevel(DebugLevel)
	require.Equal(DebugLevel, child.Level())

	child.Debug("visible")
	require.Contains(buf.String(), "visible")
}

func TestSlogLogger_Text(t *testing.T) {
	require := require.New(t)
	t.Setenv("ENV", "")
	t.Setenv("LOG_FORMAT", "text")

	var buf bytes.Buffer
	NewSlogWriter(&buf, InfoLevel, false).Info("hello", "k", 1)
	require.Contains(buf.String(), "msg=hello")
	require.Contains(buf.String(), "k=1")
	require.Contains(buf.String(), "ts=")
}

func TestSetDefault(t *testing.T) {
	require := require.New(t)

	orig := GetLogger()
	defer SetDefault(orig)

	m := NewMockLogger()
	m.On("Info", "message", mock.Anything).Return()
	SetDefault(m)
	SetDefault(nil)

	Info("message", "k", "v")
	m.AssertCalled(t, "Info", "message", []any{"k", "v"})
	require.Same(m, GetLogger())
}
