package engine

import "go.uber.org/zap"

// nopIfNil returns a no-op logger when l is nil, so pipeline stages can log
// unconditionally. The trace is observational only; disabling it never
// changes the merged body.
func nopIfNil(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
