package manager

import "sync"

// LogLevel mirrors spec.md §6's SubmitLogMessage.level enumeration.
type LogLevel string

const (
	LogDebug    LogLevel = "DEBUG"
	LogInfo     LogLevel = "INFO"
	LogWarning  LogLevel = "WARNING"
	LogError    LogLevel = "ERROR"
	LogCritical LogLevel = "CRITICAL"
)

// LogRecord is spec.md §6's SubmitLogMessage request, already normalized
// to RFC3339-UTC-with-milliseconds on the wire (the normalization itself
// happens in the RPC decoder, not here).
type LogRecord struct {
	InstanceID       string
	Operator         string
	TimestampISO8601 string
	Level            LogLevel
	Text             string
}

// LogSink is spec.md §4.3's "manager's log sink": an in-memory append
// log, queryable by tests (spec.md §8 "Log forwarding" scenario) the
// same way a real deployment would back it with a file or a forwarding
// service — which stays an external collaborator per spec.md §1.
type LogSink struct {
	mu      sync.Mutex
	records []LogRecord
}

func NewLogSink() *LogSink { return &LogSink{} }

func (s *LogSink) Append(rec LogRecord) {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
}

func (s *LogSink) Records() []LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LogRecord(nil), s.records...)
}
