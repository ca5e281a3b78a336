package logger

import (
	"go.uber.org/zap"

	"github.com/athebyme/gomarket-platform/itemsync-service/pkg/interfaces"
)

// NewNopLogger возвращает логгер, отбрасывающий все записи. Используется в тестах.
func NewNopLogger() interfaces.LoggerPort {
	return &ZapLogger{logger: zap.NewNop().Sugar()}
}
