package gqlrealtime

import (
	"github.com/kalverra/gqlrealtime/transport"
	"github.com/rs/zerolog"
)

// ZerologSink adapts a zerolog.Logger to the transport.LogFunc contract
// ("logging is a sink parameter," per the design notes), the way the
// teacher's SubscriptionClient.WithLog takes a bare
// func(args ...interface{}) and leaves the implementation to the caller.
// This module's ambient logging choice is zerolog, following
// codeready-toolchain-tarsy's use of it for structured transport logs; the
// transport package itself stays free of any logging library dependency.
func ZerologSink(logger zerolog.Logger) transport.LogFunc {
	return func(args ...interface{}) {
		event := logger.Debug()
		if len(args) == 1 {
			event.Msgf("%v", args[0])
			return
		}
		event.Msgf(repeatVFormat(len(args)), args...)
	}
}

func repeatVFormat(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ' ')
		}
		b = append(b, '%', 'v')
	}
	return string(b)
}
