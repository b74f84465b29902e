package util

import (
	"bytes"
	"io"
	"log"
)

type LogLevel byte

const (
	LogLevelTrace   LogLevel = 0
	LogLevelDebug   LogLevel = 1
	LogLevelEnabled LogLevel = 2
)

// deferredWriter buffers log lines until a destination is attached, so
// loggers created at package init don't lose output emitted before the
// program configures logging.
type deferredWriter struct {
	buffer *bytes.Buffer
	output io.Writer
}

func newDeferredWriter() *deferredWriter {
	return &deferredWriter{
		buffer: new(bytes.Buffer),
		output: nil,
	}
}

func (writer *deferredWriter) Write(p []byte) (n int, err error) {
	if writer.output == nil {
		return writer.buffer.Write(p)
	}
	return writer.output.Write(p)
}

func (writer *deferredWriter) attach(output io.Writer) {
	if writer.buffer.Len() > 0 {
		b, _ := io.ReadAll(writer.buffer)
		output.Write(b)
	}
	writer.output = output
}

var enabledLogOutput = newDeferredWriter()
var debugLogOutput = newDeferredWriter()
var traceLogOutput = newDeferredWriter()

func SetLogOutput(out io.Writer) {
	enabledLogOutput.attach(out)
}

// SetLogLevel chains the more verbose outputs into the enabled one, so a
// level enables everything at or above it.
func SetLogLevel(level LogLevel) {
	if level <= LogLevelTrace {
		traceLogOutput.attach(debugLogOutput)
	}
	if level <= LogLevelDebug {
		debugLogOutput.attach(enabledLogOutput)
	}
}

func NewLogger(prefix string, level LogLevel) *log.Logger {
	if level == LogLevelEnabled {
		return log.New(enabledLogOutput, prefix, 0)
	} else if level == LogLevelDebug {
		return log.New(debugLogOutput, prefix, 0)
	}
	return log.New(traceLogOutput, prefix, 0)
}
