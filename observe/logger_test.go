package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

// TestLogger_IncludesCallFields verifies call fields are present in log output.
func TestLogger_IncludesCallFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	meta := CallMeta{
		Exchange:  "binance",
		Resource:  "orders",
		Operation: "createOrder",
	}

	callLogger := logger.WithCall(meta)
	callLogger.Info(context.Background(), "test message")

	output := buf.String()

	// Parse JSON output
	var logEntry map[string]any
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v\nOutput: %s", err, output)
	}

	// Verify call fields
	if v, ok := logEntry["call.id"].(string); !ok || v != "binance.orders.createOrder" {
		t.Errorf("expected call.id='binance.orders.createOrder', got %v", logEntry["call.id"])
	}
	if v, ok := logEntry["exchange"].(string); !ok || v != "binance" {
		t.Errorf("expected exchange='binance', got %v", logEntry["exchange"])
	}
	if v, ok := logEntry["operation"].(string); !ok || v != "createOrder" {
		t.Errorf("expected operation='createOrder', got %v", logEntry["operation"])
	}
	if v, ok := logEntry["resource"].(string); !ok || v != "orders" {
		t.Errorf("expected resource='orders', got %v", logEntry["resource"])
	}
}

// TestLogger_OmitsEmptyResource verifies resource field is absent when empty.
func TestLogger_OmitsEmptyResource(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	callLogger := logger.WithCall(CallMeta{Exchange: "kraken", Operation: "getTicker"})
	callLogger.Info(context.Background(), "test message")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}

	if _, ok := logEntry["resource"]; ok {
		t.Errorf("expected no resource field, got %v", logEntry["resource"])
	}
	if v, ok := logEntry["call.id"].(string); !ok || v != "kraken.getTicker" {
		t.Errorf("expected call.id='kraken.getTicker', got %v", logEntry["call.id"])
	}
}

// TestLogger_IncludesDuration verifies duration_ms field is present.
func TestLogger_IncludesDuration(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	meta := CallMeta{Exchange: "kraken", Operation: "getTicker"}
	callLogger := logger.WithCall(meta)

	callLogger.Info(context.Background(), "test message",
		Field{Key: "duration_ms", Value: 50.5},
	)

	output := buf.String()

	var logEntry map[string]any
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}

	if v, ok := logEntry["duration_ms"].(float64); !ok || v != 50.5 {
		t.Errorf("expected duration_ms=50.5, got %v", logEntry["duration_ms"])
	}
}

// TestLogger_ErrorLevel verifies error log level and error field.
func TestLogger_ErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	meta := CallMeta{Exchange: "kraken", Operation: "createOrder"}
	callLogger := logger.WithCall(meta)

	callLogger.Error(context.Background(), "call failed",
		Field{Key: "error", Value: "connection timeout"},
	)

	output := buf.String()

	var logEntry map[string]any
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}

	// Verify level
	if v, ok := logEntry["level"].(string); !ok || v != "error" {
		t.Errorf("expected level='error', got %v", logEntry["level"])
	}

	// Verify error field
	if v, ok := logEntry["error"].(string); !ok || v != "connection timeout" {
		t.Errorf("expected error='connection timeout', got %v", logEntry["error"])
	}
}

// TestLogger_InfoLevel verifies info log level.
func TestLogger_InfoLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "operation complete")

	output := buf.String()

	var logEntry map[string]any
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}

	if v, ok := logEntry["level"].(string); !ok || v != "info" {
		t.Errorf("expected level='info', got %v", logEntry["level"])
	}
}

// TestLogger_CredentialsRedacted verifies credential fields never reach output.
func TestLogger_CredentialsRedacted(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"api_key", "AK-1234567890"},
		{"apiKey", "AK-1234567890"},
		{"secret", "s3cr3t-material"},
		{"passphrase", "hunter2hunter2"},
		{"signature", "HMAC-deadbeef"},
		{"token", "tok-abcdef"},
		{"password", "p4ssw0rd"},
		{"credential", "cred-blob"},
	}

	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter("info", &buf)

			callLogger := logger.WithCall(CallMeta{Exchange: "kraken", Operation: "auth"})
			callLogger.Info(context.Background(), "signing request",
				Field{Key: tc.key, Value: tc.value},
			)

			output := buf.String()

			if strings.Contains(output, tc.value) {
				t.Errorf("raw %s value should be redacted, but found in output", tc.key)
			}
			if !strings.Contains(output, "[REDACTED]") {
				t.Errorf("expected [REDACTED] marker for %s, output: %s", tc.key, output)
			}
		})
	}
}

// TestLogger_NonCredentialFieldsPassThrough verifies ordinary fields are logged as-is.
func TestLogger_NonCredentialFieldsPassThrough(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "order placed",
		Field{Key: "symbol", Value: "BTCUSD"},
		Field{Key: "qty", Value: 0.5},
	)

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}

	if v, ok := logEntry["symbol"].(string); !ok || v != "BTCUSD" {
		t.Errorf("expected symbol='BTCUSD', got %v", logEntry["symbol"])
	}
	if v, ok := logEntry["qty"].(float64); !ok || v != 0.5 {
		t.Errorf("expected qty=0.5, got %v", logEntry["qty"])
	}
}

// TestLogger_LevelFiltering verifies log level filtering.
func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)

	// Info should be filtered out
	logger.Info(context.Background(), "info message")

	output := buf.String()
	if strings.Contains(output, "info message") {
		t.Error("info message should be filtered when level is warn")
	}

	// Warn should pass through
	logger.Warn(context.Background(), "warn message")

	output = buf.String()
	if !strings.Contains(output, "warn message") {
		t.Error("warn message should pass through when level is warn")
	}
}

// TestLogger_DebugLevel verifies debug level filtering.
func TestLogger_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("debug", &buf)

	logger.Debug(context.Background(), "debug message")

	output := buf.String()

	var logEntry map[string]any
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}

	if v, ok := logEntry["level"].(string); !ok || v != "debug" {
		t.Errorf("expected level='debug', got %v", logEntry["level"])
	}
}

// TestLogger_WarnLevel verifies warn level.
func TestLogger_WarnLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Warn(context.Background(), "warning message")

	output := buf.String()

	var logEntry map[string]any
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}

	if v, ok := logEntry["level"].(string); !ok || v != "warn" {
		t.Errorf("expected level='warn', got %v", logEntry["level"])
	}
}

// TestLogger_WithCallDoesNotAffectParent verifies the parent logger is unchanged.
func TestLogger_WithCallDoesNotAffectParent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	_ = logger.WithCall(CallMeta{Exchange: "kraken", Operation: "getTicker"})
	logger.Info(context.Background(), "plain message")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v", err)
	}

	if _, ok := logEntry["call.id"]; ok {
		t.Errorf("parent logger should not carry call context, got %v", logEntry["call.id"])
	}
}
