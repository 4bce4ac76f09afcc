package navgate

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type logCall struct {
	level   string
	message string
	args    []any
}

type captureLogger struct {
	calls []logCall
}

func (l *captureLogger) record(level, message string, args ...any) {
	l.calls = append(l.calls, logCall{level: level, message: message, args: args})
}

func (l *captureLogger) Trace(message string, args ...any) { l.record("trace", message, args...) }
func (l *captureLogger) Debug(message string, args ...any) { l.record("debug", message, args...) }
func (l *captureLogger) Info(message string, args ...any)  { l.record("info", message, args...) }
func (l *captureLogger) Warn(message string, args ...any)  { l.record("warn", message, args...) }
func (l *captureLogger) Error(message string, args ...any) { l.record("error", message, args...) }
func (l *captureLogger) Fatal(message string, args ...any) { l.record("fatal", message, args...) }
func (l *captureLogger) WithContext(context.Context) Logger {
	return l
}

type loggerProviderSpy struct {
	logger Logger
	byName map[string]Logger
	names  []string
}

func (p *loggerProviderSpy) GetLogger(name string) Logger {
	p.names = append(p.names, name)
	if p.byName != nil {
		if logger, ok := p.byName[name]; ok {
			return logger
		}
	}
	return p.logger
}

func TestLoggerContractAliasesAndResolve(t *testing.T) {
	base := defaultLogger()
	require.NotNil(t, base)

	var logger Logger = base
	var provider LoggerProvider = glog.ProviderFromLogger(base)

	resolvedProvider, resolvedLogger := ResolveLogger("navgate.test", provider, logger)
	require.NotNil(t, resolvedProvider)
	require.NotNil(t, resolvedLogger)
	require.NotNil(t, resolvedProvider.GetLogger("navgate.test"))

	fallback := &captureLogger{}
	providerWithNilLogger := &loggerProviderSpy{byName: map[string]Logger{"navgate.test": nil}}
	fallbackProvider, fallbackLogger := ResolveLogger("navgate.test", providerWithNilLogger, fallback)
	require.Same(t, fallback, fallbackLogger)
	require.Same(t, fallback, fallbackProvider.GetLogger("navgate.test"))
}

func TestLoggerProviderFuncNilSafety(t *testing.T) {
	var fn LoggerProviderFunc
	require.Nil(t, fn.GetLogger("anything"))

	resolved := &captureLogger{}
	fn = func(name string) Logger { return resolved }
	require.Same(t, resolved, fn.GetLogger("anything"))
}

func TestResolveLoggerDefaultsWhenNothingConfigured(t *testing.T) {
	provider, logger := ResolveLogger("navgate.component", nil, nil)
	require.NotNil(t, logger)
	require.NotNil(t, provider.GetLogger("navgate.component"))
	require.NotNil(t, provider.GetLogger("navgate.component.sub"))
}

func TestDefaultLoggerIsAlignedAndSafe(t *testing.T) {
	logger := defaultLogger()
	require.NotNil(t, logger)

	logger.Trace("trace")
	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")
	logger.Fatal("fatal")

	contextual := logger.WithContext(context.Background())
	require.NotNil(t, contextual)
}

func TestSessionStoreWithLoggerProviderResolvesScopedLogger(t *testing.T) {
	resolved := &captureLogger{}
	provider := &loggerProviderSpy{logger: resolved}

	store := NewSessionStore().WithLoggerProvider(provider)

	require.Same(t, resolved, store.logger)
	require.Contains(t, provider.names, "navgate.session_store")
}

func TestPermissionStoreWithLoggerProviderResolvesScopedLogger(t *testing.T) {
	resolved := &captureLogger{}
	provider := &loggerProviderSpy{logger: resolved}

	store := NewPermissionStore().WithLoggerProvider(provider)

	require.Same(t, resolved, store.logger)
	require.Contains(t, provider.names, "navgate.permission_store")
}

func TestResolverWithLoggerProviderResolvesScopedLogger(t *testing.T) {
	resolved := &captureLogger{}
	provider := &loggerProviderSpy{logger: resolved}

	resolver := NewResolver(WithResolverLoggerProvider(provider))

	require.Same(t, resolved, resolver.logger)
	require.Contains(t, provider.names, "navgate.resolver")
}

func TestLoadingGateWithLoggerProviderResolvesScopedLogger(t *testing.T) {
	resolved := &captureLogger{}
	provider := &loggerProviderSpy{logger: resolved}

	loadingGate := NewLoadingGate(WithGateLoggerProvider(provider))

	require.Same(t, resolved, loadingGate.logger)
	require.Contains(t, provider.names, "navgate.loading_gate")
}

func TestSessionStoreActivitySinkLogsStructuredError(t *testing.T) {
	expectedErr := errors.New("sink unavailable")
	logger := &captureLogger{}

	store := NewSessionStore().
		WithLogger(logger).
		WithActivitySink(ActivitySinkFunc(func(context.Context, ActivityEvent) error {
			return expectedErr
		}))

	require.NoError(t, store.Hydrate(context.Background(), nil))

	require.Len(t, logger.calls, 1)
	require.Equal(t, "warn", logger.calls[0].level)
	require.Equal(t, "session store activity sink error", logger.calls[0].message)
	require.Equal(t, []any{"error", expectedErr}, logger.calls[0].args)
}

func TestResolverActivitySinkLogsStructuredError(t *testing.T) {
	expectedErr := errors.New("sink unavailable")
	logger := &captureLogger{}

	resolver := NewResolver(
		WithResolverLogger(logger),
		WithResolverActivitySink(ActivitySinkFunc(func(context.Context, ActivityEvent) error {
			return expectedErr
		})),
	)

	resolver.ResolveProtected(AnonymousSession(), PermissionState{})

	require.Len(t, logger.calls, 2)
	require.Equal(t, "info", logger.calls[0].level)
	require.Equal(t, "navigation redirect", logger.calls[0].message)
	require.Equal(t, "warn", logger.calls[1].level)
	require.Equal(t, "resolver activity sink error", logger.calls[1].message)
	require.Equal(t, []any{"error", expectedErr}, logger.calls[1].args)
}

func TestCompleteProfileActivitySinkLogsStructuredError(t *testing.T) {
	expectedErr := errors.New("sink unavailable")
	logger := &captureLogger{}

	handler := &CompleteProfileHandler{
		logger: logger,
		activity: ActivitySinkFunc(func(context.Context, ActivityEvent) error {
			return expectedErr
		}),
	}

	handler.recordActivity(context.Background(), &CompleteProfileResponse{
		User: &User{ID: uuid.New(), Role: RoleDoctor},
	})

	require.Len(t, logger.calls, 1)
	require.Equal(t, "warn", logger.calls[0].level)
	require.Equal(t, "activity sink error during profile completion", logger.calls[0].message)
	require.Equal(t, []any{"error", expectedErr}, logger.calls[0].args)
}
