package ports

// Observability emits metrics and logs about throughput, retries, latency
// and dead-letter conditions.
type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	ObserveLatency(name string, seconds float64)

	SetGauge(name string, v float64)

	RecordDeadLetter(id DeadLetterID, docID string, err error)
}

type Field struct {
	Key   string
	Value any
}
