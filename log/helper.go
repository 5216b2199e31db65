package log

// Debug uses the log helper to record debug-level log information.
func Debug(a ...any) { helper().Debug(a...) }

// Debugf records a formatted debug-level message.
func Debugf(format string, a ...any) { helper().Debugf(format, a...) }

// Debugw records debug-level key/value pairs.
func Debugw(keyvals ...any) { helper().Debugw(keyvals...) }

// Info uses the log helper to record info-level log information.
func Info(a ...any) { helper().Info(a...) }

func Infof(format string, a ...any) { helper().Infof(format, a...) }

func Infow(keyvals ...any) { helper().Infow(keyvals...) }

func Warn(a ...any) { helper().Warn(a...) }

func Warnf(format string, a ...any) { helper().Warnf(format, a...) }

func Warnw(keyvals ...any) { helper().Warnw(keyvals...) }

// Error uses the log helper to record error-level log information.
func Error(a ...any) { helper().Error(a...) }

func Errorf(format string, a ...any) { helper().Errorf(format, a...) }

func Errorw(keyvals ...any) { helper().Errorw(keyvals...) }
