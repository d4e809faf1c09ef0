package security

import (
	"go.uber.org/zap"
)

// Уровни серьёзности событий безопасности
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// LogEvent журналирует событие безопасности со структурированными полями.
// Контакт без определимого владельца или отклонённый payload — это
// операционные аномалии, которые должны быть видны, но не прерывают
// обработку.
func LogEvent(logger *zap.Logger, severity, event string, fields ...zap.Field) {
	if logger == nil {
		return
	}

	fields = append([]zap.Field{
		zap.String("security_event", event),
		zap.String("severity", severity),
	}, fields...)

	switch severity {
	case SeverityHigh:
		logger.Error("Событие безопасности", fields...)
	case SeverityMedium:
		logger.Warn("Событие безопасности", fields...)
	default:
		logger.Info("Событие безопасности", fields...)
	}
}
