package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
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

// LevelFromDebug переводит уровень отладки из конфигурации оверлеев (0..5)
// в минимальный уровень логирования.
func LevelFromDebug(debug int) LogLevel {
	switch {
	case debug >= 5:
		return TRACE
	case debug == 4:
		return DEBUG
	case debug >= 2:
		return INFO
	default:
		return WARN
	}
}

// Logger представляет логгер отдельного компонента
type Logger struct {
	component       string
	consoleLogger   *log.Logger
	fileLogger      *log.Logger
	file            *os.File
	minConsoleLevel LogLevel
	minFileLevel    LogLevel
	sink            *Logger // куда пишут логгеры компонентов
	mu              sync.Mutex
}

// Глобальный логгер по умолчанию; пишет в консоль, пока не вызван InitDefaultLogger
var defaultLogger = &Logger{
	consoleLogger:   log.New(os.Stdout, "", log.LstdFlags),
	minConsoleLevel: INFO,
	minFileLevel:    DEBUG,
}

// NewLogger создаёт логгер компонента. Вывод идёт через логгер по умолчанию,
// поэтому файл, открытый позже через InitDefaultLogger, тоже получает записи.
func NewLogger(component string) (*Logger, error) {
	if component == "" {
		return nil, fmt.Errorf("имя компонента не может быть пустым")
	}

	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()

	return &Logger{
		component:       component,
		minConsoleLevel: defaultLogger.minConsoleLevel,
		minFileLevel:    defaultLogger.minFileLevel,
		sink:            defaultLogger,
	}, nil
}

// InitDefaultLogger инициализирует логгер по умолчанию с записью в logs/<component>_<время>.log
func InitDefaultLogger(component string) error {
	return InitDefaultLoggerDir(component, "logs")
}

// InitDefaultLoggerDir делает то же, что InitDefaultLogger, но в указанной директории
func InitDefaultLoggerDir(component, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("ошибка создания директории %s: %w", dir, err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join(dir, fmt.Sprintf("%s_%s.log", component, timestamp))

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("ошибка создания файла логов: %w", err)
	}

	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()

	if defaultLogger.file != nil {
		defaultLogger.file.Close()
	}
	defaultLogger.component = component
	defaultLogger.file = file
	defaultLogger.fileLogger = log.New(file, "", log.LstdFlags)
	return nil
}

// CloseDefaultLogger закрывает файл логгера по умолчанию
func CloseDefaultLogger() {
	defaultLogger.Close()
}

// SetDefaultLevel задаёт минимальные уровни логгера по умолчанию
func SetDefaultLevel(consoleLevel, fileLevel LogLevel) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.minConsoleLevel = consoleLevel
	defaultLogger.minFileLevel = fileLevel
}

// Close закрывает файл, если логгер им владеет
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

// Trace логирует сообщение уровня TRACE
func (l *Logger) Trace(format string, args ...interface{}) { l.log(TRACE, format, args...) }

// Debug логирует сообщение уровня DEBUG
func (l *Logger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }

// Info логирует сообщение уровня INFO
func (l *Logger) Info(format string, args ...interface{}) { l.log(INFO, format, args...) }

// Warn логирует сообщение уровня WARN
func (l *Logger) Warn(format string, args ...interface{}) { l.log(WARN, format, args...) }

// Error логирует сообщение уровня ERROR
func (l *Logger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if l == nil {
		return
	}

	l.mu.Lock()
	minConsole, minFile, component := l.minConsoleLevel, l.minFileLevel, l.component
	l.mu.Unlock()

	if level < minConsole && level < minFile {
		return
	}

	message := fmt.Sprintf(format, args...)
	if component != "" {
		message = fmt.Sprintf("[%s] [%s] %s", level.String(), component, message)
	} else {
		message = fmt.Sprintf("[%s] %s", level.String(), message)
	}

	sink := l
	if l.sink != nil {
		sink = l.sink
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()

	if sink.fileLogger != nil && level >= minFile {
		sink.fileLogger.Println(message)
	}
	if sink.consoleLogger != nil && level >= minConsole {
		sink.consoleLogger.Println(message)
	}
}

// Trace логирует через логгер по умолчанию
func Trace(format string, args ...interface{}) { defaultLogger.log(TRACE, format, args...) }

// Debug логирует через логгер по умолчанию
func Debug(format string, args ...interface{}) { defaultLogger.log(DEBUG, format, args...) }

// Info логирует через логгер по умолчанию
func Info(format string, args ...interface{}) { defaultLogger.log(INFO, format, args...) }

// Warn логирует через логгер по умолчанию
func Warn(format string, args ...interface{}) { defaultLogger.log(WARN, format, args...) }

// Error логирует через логгер по умолчанию
func Error(format string, args ...interface{}) { defaultLogger.log(ERROR, format, args...) }
