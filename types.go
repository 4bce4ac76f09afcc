package navgate

import (
	"context"
	"fmt"

	"github.com/goliatone/go-logger/glog"
)

// Logger is the structured logging contract used across the package. It is an
// alias of glog.Logger so any go-logger instance plugs in directly.
type Logger = glog.Logger

// LoggerProvider resolves named loggers so components can scope their output,
// e.g. "navgate.session_store" or "navgate.resolver".
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// LoggerProviderFunc adapts a function to the LoggerProvider interface.
type LoggerProviderFunc func(name string) Logger

// GetLogger implements LoggerProvider.
func (f LoggerProviderFunc) GetLogger(name string) Logger {
	if f == nil {
		return nil
	}
	return f(name)
}

type fallbackLoggerProvider struct {
	provider LoggerProvider
	fallback Logger
}

func (p fallbackLoggerProvider) GetLogger(name string) Logger {
	if p.provider != nil {
		if lgr := p.provider.GetLogger(name); lgr != nil {
			return lgr
		}
	}
	return p.fallback
}

// ResolveLogger picks the effective logger for a component: the provider's
// named logger when available, the explicit logger otherwise, and a safe
// default as a last resort. The returned provider resolves any name the inner
// provider cannot to the same resolved logger, so subcomponents stay scoped
// without nil checks.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) (LoggerProvider, Logger) {
	resolved := logger
	if provider != nil {
		if lgr := provider.GetLogger(name); lgr != nil {
			resolved = lgr
		}
	}
	if resolved == nil {
		resolved = defaultLogger()
	}
	return fallbackLoggerProvider{provider: provider, fallback: resolved}, resolved
}

// defLogger is the stdout fallback used when no logger was configured. Fatal
// logs but does not exit; a library default should never kill the process.
type defLogger struct{}

func defaultLogger() Logger {
	return defLogger{}
}

func (d defLogger) emit(level, msg string, args ...any) {
	if len(args) > 0 {
		fmt.Printf("[%s] NAVGATE %s %v\n", level, msg, args)
		return
	}
	fmt.Printf("[%s] NAVGATE %s\n", level, msg)
}

func (d defLogger) Trace(msg string, args ...any) { d.emit("TRC", msg, args...) }
func (d defLogger) Debug(msg string, args ...any) { d.emit("DBG", msg, args...) }
func (d defLogger) Info(msg string, args ...any)  { d.emit("INF", msg, args...) }
func (d defLogger) Warn(msg string, args ...any)  { d.emit("WRN", msg, args...) }
func (d defLogger) Error(msg string, args ...any) { d.emit("ERR", msg, args...) }
func (d defLogger) Fatal(msg string, args ...any) { d.emit("FTL", msg, args...) }

func (d defLogger) WithContext(context.Context) Logger { return d }

// Config holds navigation and token options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetContextKey() string
	GetTokenExpiration() int
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
	GetAudience() []string
	GetRejectedRouteKey() string
	GetRejectedRouteDefault() string
	GetEnvironment() string
	GetMinLoadingMillis() int
	GetAuthProxyTarget() string
	GetDataProxyTarget() string
}

// SessionLoader produces the boot session during hydration, typically reading
// a persisted token or a session store entry.
type SessionLoader interface {
	Load(ctx context.Context) (Session, error)
}

// SessionLoaderFunc adapts a function to the SessionLoader interface.
type SessionLoaderFunc func(ctx context.Context) (Session, error)

// Load implements SessionLoader.
func (f SessionLoaderFunc) Load(ctx context.Context) (Session, error) {
	if f == nil {
		return AnonymousSession(), nil
	}
	return f(ctx)
}
