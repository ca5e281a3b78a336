package interfaces

import "context"

// LogLevel определяет уровни логирования
type LogLevel int

const (
	// Уровни логирования от наименее до наиболее важного
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// LogField представляет дополнительное поле в логе
type LogField struct {
	Key   string
	Value interface{}
}

// LoggerPort определяет интерфейс для системы логирования
// Реализация может использовать любую библиотеку логирования (Zap, Logrus, Zerolog и т.д.)
type LoggerPort interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})

	// Варианты с контекстом дополняют запись полями из контекста (request_id, trace_id)

	DebugWithContext(ctx context.Context, msg string, args ...interface{})
	InfoWithContext(ctx context.Context, msg string, args ...interface{})
	WarnWithContext(ctx context.Context, msg string, args ...interface{})
	ErrorWithContext(ctx context.Context, msg string, args ...interface{})

	// WithField возвращает логгер с постоянным дополнительным полем
	WithField(key string, value interface{}) LoggerPort

	// WithFields возвращает логгер с набором постоянных полей
	WithFields(fields ...LogField) LoggerPort

	// WithTraceID возвращает логгер, привязанный к идентификатору трассировки
	WithTraceID(traceID string) LoggerPort

	// Sync сбрасывает буферизованные записи
	Sync() error
}
