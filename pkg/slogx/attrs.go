package slogx

import (
	"fmt"
	"log/slog"
)

const (
	// KeyLoggerName is the attribute key that identifies the component emitting a record.
	KeyLoggerName = "logger"
	// KeyBroker is the attribute key carrying the name of a broker.
	KeyBroker = "broker"
	// KeyStrategy is the attribute key carrying the kind of the bound strategy.
	KeyStrategy = "strategy"
	// KeyCorrelation is the attribute key carrying the correlation id of a pending request.
	KeyCorrelation = "correlation_id"
)

// Error returns a slog.Attr with the key "error" and the error's message as the value.
// A nil error is rendered as "<nil>" so that call sites never have to guard the attribute.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// Stringer creates a slog.Attr with the provided key and the String() of the value.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

// LoggerName returns an attribute for the logger name.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}

// Broker returns an attribute naming the broker a record belongs to.
func Broker(name string) slog.Attr {
	return slog.String(KeyBroker, name)
}

// Strategy returns an attribute describing the kind of answering strategy.
func Strategy(kind fmt.Stringer) slog.Attr {
	return Stringer(KeyStrategy, kind)
}

// Correlation returns an attribute carrying the correlation id of a request.
func Correlation(id string) slog.Attr {
	return slog.String(KeyCorrelation, id)
}
