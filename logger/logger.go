package logger

import (
	"io"
	"log"
	"os"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	entry  *logrus.Entry
	active bool
}

var MFTRecoverlogger Logger

func InitializeLogger(active bool, logfilename string) {
	if !active {
		MFTRecoverlogger = Logger{active: active}
		return
	}

	file, err := os.OpenFile(logfilename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatal(err)
	}
	MFTRecoverlogger = New(file)
}

// New returns an active logger writing to out.
func New(out io.Writer) Logger {
	base := logrus.New()
	base.SetOutput(out)
	base.SetLevel(logrus.DebugLevel)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	return Logger{entry: base.WithField("app", "MFTRecover"), active: true}
}

func (logger Logger) WithRecord(entry uint64) Logger {
	if !logger.active {
		return logger
	}
	return Logger{entry: logger.entry.WithField("record", entry), active: true}
}

func (logger Logger) Debug(msg string) {
	if logger.active {
		logger.entry.Debug(msg)
	}
}

func (logger Logger) Info(msg string) {
	if logger.active {
		logger.entry.Info(msg)
	}
}

func (logger Logger) Error(msg any) {
	if logger.active {
		logger.entry.Error(msg)
	}
}

func (logger Logger) Warning(msg string) {
	if logger.active {
		logger.entry.Warning(msg)
	}
}
