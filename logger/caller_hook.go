package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// callerHook rewrites the caller logrus reports so log lines point at the
// call site in application code rather than at this wrapper package.
type callerHook struct{}

func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire walks up the stack past logrus and the wrapper methods in this
// package and pins the entry's caller to the first application frame.
func (h *callerHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(6, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !more {
			break
		}
		fn := frame.Function
		if strings.Contains(fn, "sirupsen/logrus") || strings.Contains(fn, "tickerflow/logger") {
			continue
		}
		entry.Caller = &frame
		break
	}
	return nil
}
