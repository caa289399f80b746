package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"
	// FieldAnalysisID identifies one analysis request.
	FieldAnalysisID = "analysis_id"
	// FieldDocument is the uploaded document name.
	FieldDocument = "document"
	// FieldSubject is the school subject the lesson belongs to.
	FieldSubject = "subject"
	// FieldTier is the competency tier used for lookups.
	FieldTier = "tier"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		value := strings.TrimSpace(field.Value)
		if key == "" || value == "" {
			continue
		}
		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to the logger, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// CommonFields describes the AI provider and model. Empty values are skipped.
func CommonFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// AnalysisFields describes one analysis request.
func AnalysisFields(id, document, subject, tier string) []zap.Field {
	return StringFields(
		StringField{Key: FieldAnalysisID, Value: id},
		StringField{Key: FieldDocument, Value: document},
		StringField{Key: FieldSubject, Value: subject},
		StringField{Key: FieldTier, Value: tier},
	)
}

// ForAnalysis returns a child logger tagged with the analysis request fields.
func ForAnalysis(logger *zap.Logger, id, document, subject, tier string) *zap.Logger {
	return WithFields(logger, AnalysisFields(id, document, subject, tier)...)
}
