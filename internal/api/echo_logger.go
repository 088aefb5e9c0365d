package api

import (
	"fmt"
	"io"
	"sync/atomic"

	echolog "github.com/labstack/gommon/log"

	"github.com/thyholm1234/DOF.not/internal/logger"
)

// echoLogger routes echo's own logging (recovered panics, startup errors)
// into the module logger. Output, prefix and header belong to the module
// logger and the corresponding setters are ignored.
type echoLogger struct {
	log   logger.Logger
	level atomic.Uint32
}

func newEchoLogger(log logger.Logger) *echoLogger {
	l := &echoLogger{log: log}
	l.level.Store(uint32(echolog.DEBUG))
	return l
}

func (l *echoLogger) emit(lvl echolog.Lvl, msg string, fields ...logger.Field) {
	if lvl < echolog.Lvl(l.level.Load()) {
		return
	}
	switch lvl {
	case echolog.DEBUG:
		l.log.Debug(msg, fields...)
	case echolog.WARN:
		l.log.Warn(msg, fields...)
	case echolog.ERROR:
		l.log.Error(msg, fields...)
	default:
		l.log.Info(msg, fields...)
	}
}

func (l *echoLogger) emitJSON(lvl echolog.Lvl, j echolog.JSON) {
	fields := make([]logger.Field, 0, len(j))
	for k, v := range j {
		fields = append(fields, logger.Any(k, v))
	}
	l.emit(lvl, "echo", fields...)
}

func (l *echoLogger) Output() io.Writer { return io.Discard }
func (l *echoLogger) SetOutput(io.Writer) {}
func (l *echoLogger) Prefix() string { return "" }
func (l *echoLogger) SetPrefix(string) {}
func (l *echoLogger) SetHeader(string) {}
func (l *echoLogger) Level() echolog.Lvl { return echolog.Lvl(l.level.Load()) }
func (l *echoLogger) SetLevel(v echolog.Lvl) { l.level.Store(uint32(v)) }

// Print is unconditional, as in gommon
func (l *echoLogger) Print(i ...any) { l.log.Info(fmt.Sprint(i...)) }
func (l *echoLogger) Printf(format string, a ...any) { l.log.Info(fmt.Sprintf(format, a...)) }
func (l *echoLogger) Printj(j echolog.JSON) { l.emitJSON(echolog.INFO, j) }

func (l *echoLogger) Debug(i ...any) { l.emit(echolog.DEBUG, fmt.Sprint(i...)) }
func (l *echoLogger) Debugf(format string, a ...any) { l.emit(echolog.DEBUG, fmt.Sprintf(format, a...)) }
func (l *echoLogger) Debugj(j echolog.JSON) { l.emitJSON(echolog.DEBUG, j) }
func (l *echoLogger) Info(i ...any) { l.emit(echolog.INFO, fmt.Sprint(i...)) }
func (l *echoLogger) Infof(format string, a ...any) { l.emit(echolog.INFO, fmt.Sprintf(format, a...)) }
func (l *echoLogger) Infoj(j echolog.JSON) { l.emitJSON(echolog.INFO, j) }
func (l *echoLogger) Warn(i ...any) { l.emit(echolog.WARN, fmt.Sprint(i...)) }
func (l *echoLogger) Warnf(format string, a ...any) { l.emit(echolog.WARN, fmt.Sprintf(format, a...)) }
func (l *echoLogger) Warnj(j echolog.JSON) { l.emitJSON(echolog.WARN, j) }
func (l *echoLogger) Error(i ...any) { l.emit(echolog.ERROR, fmt.Sprint(i...)) }
func (l *echoLogger) Errorf(format string, a ...any) { l.emit(echolog.ERROR, fmt.Sprintf(format, a...)) }
func (l *echoLogger) Errorj(j echolog.JSON) { l.emitJSON(echolog.ERROR, j) }

// Fatal and Panic log at error level and panic instead of exiting, so the
// watcher can still shut down its scheduler.
func (l *echoLogger) Fatal(i ...any) { l.fail(fmt.Sprint(i...)) }
func (l *echoLogger) Fatalf(format string, a ...any) { l.fail(fmt.Sprintf(format, a...)) }
func (l *echoLogger) Fatalj(j echolog.JSON) { l.fail(fmt.Sprint(j)) }
func (l *echoLogger) Panic(i ...any) { l.fail(fmt.Sprint(i...)) }
func (l *echoLogger) Panicf(format string, a ...any) { l.fail(fmt.Sprintf(format, a...)) }
func (l *echoLogger) Panicj(j echolog.JSON) { l.fail(fmt.Sprint(j)) }

func (l *echoLogger) fail(msg string) {
	l.log.Error(msg)
	panic(msg)
}
