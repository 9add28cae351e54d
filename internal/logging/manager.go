package logging

import (
	"errors"
	"fmt"
	"sync"
)

// LoggerManager хранит по одному логгеру на компонент
type LoggerManager struct {
	mu      sync.Mutex
	loggers map[string]*Logger
}

var globalManager = &LoggerManager{loggers: make(map[string]*Logger)}

// GetLoggerManager возвращает менеджер логгеров процесса
func GetLoggerManager() *LoggerManager {
	return globalManager
}

// Component возвращает логгер компонента. Если файл логов создать не
// удалось, компонент пишет только в консоль.
func (lm *LoggerManager) Component(name string) *Logger {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if l, ok := lm.loggers[name]; ok {
		return l
	}

	l, err := NewLogger(name)
	if err != nil {
		opts := currentOptions()
		opts.Dir = ""
		l, _ = NewLoggerWithOptions(name, opts)
		l.Warn("⚠️ Файл логов недоступен, пишем только в консоль: %v", err)
	}
	lm.loggers[name] = l
	return l
}

// CloseAll закрывает файлы всех логгеров и забывает их
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var errs []error
	for name, l := range lm.loggers {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("логгер %s: %w", name, err))
		}
	}
	lm.loggers = make(map[string]*Logger)
	return errors.Join(errs...)
}

func GetComponentLogger(component string) *Logger {
	return globalManager.Component(component)
}

func GetNetworkLogger() *Logger { return GetComponentLogger("network") }
func GetServerLogger() *Logger  { return GetComponentLogger("server") }
func GetWorldLogger() *Logger   { return GetComponentLogger("world") }
func GetClientLogger() *Logger  { return GetComponentLogger("client") }
func GetAPILogger() *Logger     { return GetComponentLogger("api") }
