package instrument

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// 内部调试实现
type clogs struct {
	logger LogProvider
	// is log output enabled,1: enable, 0: disable
	hasLog uint32
}

// newClogWithPrefix new clog which tags every line with the communicator address.
func newClogWithPrefix(prefix string) clogs {
	return clogs{
		logger: newDefaultLogger(prefix),
	}
}

// LogMode set enable or disable log output when you has set logger
func (sf *clogs) LogMode(enable bool) {
	if enable {
		atomic.StoreUint32(&sf.hasLog, 1)
	} else {
		atomic.StoreUint32(&sf.hasLog, 0)
	}
}

// SetLogProvider set logger provider
func (sf *clogs) SetLogProvider(p LogProvider) {
	if p != nil {
		sf.logger = p
	}
}

func (sf *clogs) enabled() bool {
	return atomic.LoadUint32(&sf.hasLog) == 1
}

// Errorf Log ERROR level message.
func (sf *clogs) Errorf(format string, v ...interface{}) {
	if sf.enabled() {
		sf.logger.Errorf(format, v...)
	}
}

// Debugf Log DEBUG level message.
func (sf *clogs) Debugf(format string, v ...interface{}) {
	if sf.enabled() {
		sf.logger.Debugf(format, v...)
	}
}

// defaultLogger is shared by every communicator, entries differ by field only.
var defaultLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return l
}()

// *logrus.Entry already satisfies LogProvider.
var _ LogProvider = (*logrus.Entry)(nil)

func newDefaultLogger(prefix string) LogProvider {
	return defaultLogger.WithField("comm", prefix)
}
