package utils

import "errors"

// ----------------- storage ------------------
var (
	ErrStorageEmptyHostName       = errors.New("host name is empty")
	ErrStorageInvalidPortNumber   = errors.New("port number is empty")
	ErrStorageEmptyUsername       = errors.New("username is empty")
	ErrStorageEmptyPassword       = errors.New("password is empty")
	ErrStorageInvalidDatabaseName = errors.New("database name is empty")
	ErrStorageInvalidSslMode      = errors.New("SSL mode is invalid")
	ErrStorageInvalidPoolSize     = errors.New("pool size is invalid")
	ErrStorageInvalidTimeout      = errors.New("timeout is invalid")
)

// ----------------- cache ------------------
var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// ----------------- item sync ------------------
var (
	// ErrConfigInvalid - обязательная настройка отсутствует или вне допустимых границ.
	// Фатальна на старте процесса, до обслуживания первого вызова.
	ErrConfigInvalid = errors.New("configuration is invalid")

	// ErrTransient - зависимость (хранилище, очередь, журнал аудита) недоступна.
	// Повторяется там, где компонент определяет повтор; иначе ошибка результата.
	ErrTransient = errors.New("transient dependency error")

	// ErrCircuitOpen - предохранитель разомкнут, вызов отклонен без обращения
	// к очереди. Отличается от настоящего отказа зависимости: зависимость
	// деградировала и сервис выжидает.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)
