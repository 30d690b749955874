package binding

import "time"

// Operation names a request client call.
type Operation string

const (
	OpIndex  Operation = "index"
	OpShow   Operation = "show"
	OpStore  Operation = "store"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpLogin  Operation = "login"
	OpLogout Operation = "logout"
)

// RequestLogEvent describes one completed binding request.
type RequestLogEvent struct {
	RequestID string
	Resource  string
	Operation Operation
	Sequence  uint64
	Duration  time.Duration
	Errors    int
	Records   int
	// Discarded is set when the response was not applied because a newer
	// request was issued or the binding was closed.
	Discarded   bool
	Err         error
	ActivityErr error
}

// RequestLogger records request events.
type RequestLogger interface {
	LogRequest(RequestLogEvent)
}

// RequestLoggerFunc adapts a function to RequestLogger.
type RequestLoggerFunc func(RequestLogEvent)

// LogRequest implements RequestLogger.
func (f RequestLoggerFunc) LogRequest(event RequestLogEvent) {
	if f != nil {
		f(event)
	}
}

type requestLoggers []RequestLogger

func (l requestLoggers) LogRequest(event RequestLogEvent) {
	for _, logger := range l {
		logger.LogRequest(event)
	}
}
