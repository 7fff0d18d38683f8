package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	stdlog "log"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

/*
 *  Provides request and diagnostics logging facilities
 */

type ctxID int

const (
	txnIDKey ctxID = iota
	deviceIDKey
	correlationIDKey
)

// WithTxnID returns a context which knows its transaction ID
func WithTxnID(ctx context.Context, txnID string) context.Context {
	return context.WithValue(ctx, txnIDKey, txnID)
}

// WithDeviceID returns a context which tags log entries with a device ID
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDKey, deviceID)
}

// WithCorrelationID returns a context which tags log entries with the
// caller-supplied correlation ID
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// TxnID returns the transaction ID stored in ctx, if any
func TxnID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(txnIDKey).(string)
	return id, ok
}

type logger struct {
	logger  *logrus.Entry
	logFile *os.File
}

// The one singleton logger
var gLogger logger
var gInstanceID string

// Logger returns the global logger, decorated with any IDs carried by ctx
func Logger(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return gLogger.logger
	}

	fields := logrus.Fields{}
	if txnID, ok := ctx.Value(txnIDKey).(string); ok {
		fields["txnid"] = txnID
	}
	if deviceID, ok := ctx.Value(deviceIDKey).(string); ok {
		fields["device"] = deviceID
	}
	if corrID, ok := ctx.Value(correlationIDKey).(string); ok {
		fields["correlation"] = corrID
	}

	if len(fields) == 0 {
		return gLogger.logger
	}

	return gLogger.logger.WithFields(fields)
}

func init() {
	// Viper defaults
	viper.SetDefault("logging.location", "stderr")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.level", "info")

	// The app instantiation ID
	gInstanceID = uuid.New().String()

	gLogger.logger = baseEntry()
}

func baseEntry() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"pid":      os.Getpid(),
		"exe":      path.Base(os.Args[0]),
		"instance": gInstanceID,
	})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Configure sets the log level and output location/format
func Configure(cfg *viper.Viper) error {
	var out io.Writer

	// Configure system log location
	switch loc := cfg.GetString("logging.location"); loc {
	case "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		file, err := os.OpenFile(loc, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}

		gLogger.logger.Debugf("Switching system log to %s", loc)

		if gLogger.logFile != nil {
			gLogger.logFile.Close()
		}
		gLogger.logFile = file
		out = file
	}

	logrus.SetOutput(out)
	gLogger.logger = baseEntry()

	// Obey the level setting in the config if not already in debug mode
	if !logrus.IsLevelEnabled(logrus.DebugLevel) {
		level := cfg.GetString("logging.level")
		val, err := logrus.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("bad log level: [%s]", level)
		}
		logrus.SetLevel(val)
	}

	switch format := cfg.GetString("logging.format"); format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{
			DisableColors: !isTerminal(out),
			FullTimestamp: true,
		})
	default:
		return fmt.Errorf("bad log format: [%s]", format)
	}

	// Override the standard system logger
	stdlog.SetOutput(Logger(nil).WriterLevel(logrus.DebugLevel))

	return nil
}
