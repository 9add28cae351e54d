package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel разбирает уровень из строки конфигурации. Пустая или неизвестная
// строка даёт fallback.
func ParseLevel(s string, fallback LogLevel) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return TRACE
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return fallback
	}
}

// Options задаёт куда и с какими уровнями пишет логгер.
type Options struct {
	Dir             string // каталог для файлов логов; пусто - без файла
	ConsoleLevel    LogLevel
	FileLevel       LogLevel
	ConsoleOverride io.Writer // для тестов; по умолчанию os.Stdout
}

// DefaultOptions: только консоль с INFO. Файл включается через Configure.
func DefaultOptions() Options {
	return Options{
		ConsoleLevel: INFO,
		FileLevel:    TRACE,
	}
}

// Logger пишет сообщения одного компонента в консоль и (опционально) в файл.
type Logger struct {
	component       string
	consoleLogger   *log.Logger
	fileLogger      *log.Logger
	file            *os.File
	minConsoleLevel LogLevel
	minFileLevel    LogLevel
	mu              sync.Mutex
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = &Logger{
		component:       "default",
		consoleLogger:   log.New(os.Stdout, "", log.LstdFlags),
		minConsoleLevel: INFO,
		minFileLevel:    ERROR,
	}
	globalOptions = DefaultOptions()
)

// Configure задаёт опции для всех логгеров, создаваемых после вызова.
func Configure(opts Options) {
	defaultMu.Lock()
	globalOptions = opts
	defaultMu.Unlock()
}

func currentOptions() Options {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return globalOptions
}

// NewLogger создаёт логгер компонента с текущими глобальными опциями.
func NewLogger(component string) (*Logger, error) {
	return NewLoggerWithOptions(component, currentOptions())
}

// NewLoggerWithOptions создаёт логгер компонента.
func NewLoggerWithOptions(component string, opts Options) (*Logger, error) {
	var console io.Writer = os.Stdout
	if opts.ConsoleOverride != nil {
		console = opts.ConsoleOverride
	}

	l := &Logger{
		component:       component,
		consoleLogger:   log.New(console, "", log.LstdFlags),
		minConsoleLevel: opts.ConsoleLevel,
		minFileLevel:    opts.FileLevel,
	}

	if opts.Dir == "" {
		return l, nil
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории %s: %w", opts.Dir, err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join(opts.Dir, fmt.Sprintf("%s_%s.log", component, timestamp))

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания файла логов: %w", err)
	}

	l.file = file
	l.fileLogger = log.New(file, "", log.LstdFlags)
	return l, nil
}

// Component возвращает имя компонента
func (l *Logger) Component() string {
	return l.component
}

// Close закрывает файл логов
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.fileLogger = nil
	return err
}

func (l *Logger) Trace(format string, args ...interface{}) { l.logf(TRACE, format, args...) }
func (l *Logger) Debug(format string, args ...interface{}) { l.logf(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.logf(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.logf(WARN, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.logf(ERROR, format, args...) }

func (l *Logger) logf(level LogLevel, format string, args ...interface{}) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	toConsole := level >= l.minConsoleLevel
	toFile := l.fileLogger != nil && level >= l.minFileLevel
	if !toConsole && !toFile {
		return
	}

	message := fmt.Sprintf("[%s] [%s] %s", level.String(), l.component, fmt.Sprintf(format, args...))

	if toFile {
		l.fileLogger.Println(message)
	}
	if toConsole {
		l.consoleLogger.Println(message)
	}
}

// InitDefaultLogger создаёт логгер по умолчанию для процесса
func InitDefaultLogger(component string) error {
	l, err := NewLogger(component)
	if err != nil {
		return err
	}

	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
	return nil
}

// CloseDefaultLogger закрывает логгер по умолчанию
func CloseDefaultLogger() {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	_ = l.Close()
}

// Default возвращает логгер по умолчанию
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

func Trace(format string, args ...interface{}) { Default().logf(TRACE, format, args...) }
func Debug(format string, args ...interface{}) { Default().logf(DEBUG, format, args...) }
func Info(format string, args ...interface{})  { Default().logf(INFO, format, args...) }
func Warn(format string, args ...interface{})  { Default().logf(WARN, format, args...) }
func Error(format string, args ...interface{}) { Default().logf(ERROR, format, args...) }

// LogProtocolError логирует ошибку разбора входящего сообщения
func LogProtocolError(l *Logger, connID string, err error, data []byte) {
	const maxDump = 256
	if len(data) > maxDump {
		data = data[:maxDump]
	}
	l.Warn("Protocol error from %s: %v (raw=%q)", connID, err, data)
}
