package logger

import (
	"github.com/stretchr/testify/mock"
)

// MockLogger is a Logger backed by testify's mock. Child loggers created by With are
// the mock itself, so calls made through them are recorded too.
type MockLogger struct {
	mock.Mock
}

var _ Logger = (*MockLogger)(nil)

func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

// AllowAll accepts every log call below FatalLevel without an explicit expectation.
// Recorded calls can still be checked with AssertCalled.
func (m *MockLogger) AllowAll() *MockLogger {
	for _, method := range []string{"Debug", "Info", "Warn", "Error"} {
		m.On(method, mock.Anything, mock.Anything).Maybe()
	}

	return m
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) { m.Called(msg, keysAndValues) }
func (m *MockLogger) Info(msg string, keysAndValues ...any)  { m.Called(msg, keysAndValues) }
func (m *MockLogger) Warn(msg string, keysAndValues ...any)  { m.Called(msg, keysAndValues) }
func (m *MockLogger) Error(msg string, keysAndValues ...any) { m.Called(msg, keysAndValues) }
func (m *MockLogger) Fatal(msg string, keysAndValues ...any) { m.Called(msg, keysAndValues) }

func (m *MockLogger) With(_ ...any) Logger {
	return m
}

// Level reports DebugLevel so that every call reaches the mock.
func (m *MockLogger) Level() Level {
	return DebugLevel
}

func (m *MockLogger) SetLevel(_ Level) {}
