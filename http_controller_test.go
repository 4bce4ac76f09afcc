package navgate_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-navgate"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func okUpstream(service string) navgate.UpstreamClientFunc {
	return func(ctx context.Context, req navgate.UpstreamRequest) (*navgate.UpstreamResponse, error) {
		return &navgate.UpstreamResponse{
			StatusCode: http.StatusOK,
			Header:     http.Header{"X-Upstream": []string{service}},
			Body:       []byte(`{}`),
		}, nil
	}
}

func newPassthroughFixture(t *testing.T, opts ...navgate.PassthroughOption) *navgate.PassthroughController {
	t.Helper()

	base := []navgate.PassthroughOption{
		navgate.WithPassthroughAuthUpstream(okUpstream("auth")),
		navgate.WithPassthroughDataUpstream(okUpstream("data")),
	}

	return navgate.NewPassthroughController(append(base, opts...)...)
}

// captureJSON registers a JSON expectation that records the status and payload
// the controller responds with.
func captureJSON(mockCtx *MockContext, status *int, payload *map[string]any) {
	mockCtx.On("JSON", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		*status = args.Get(0).(int)
		*payload = args.Get(1).(map[string]any)
	}).Return(nil)
}

func TestNewPassthroughController(t *testing.T) {
	t.Run("panics without an auth upstream", func(t *testing.T) {
		require.Panics(t, func() {
			navgate.NewPassthroughController(
				navgate.WithPassthroughDataUpstream(okUpstream("data")),
			)
		})
	})

	t.Run("panics without a data upstream", func(t *testing.T) {
		require.Panics(t, func() {
			navgate.NewPassthroughController(
				navgate.WithPassthroughAuthUpstream(okUpstream("auth")),
			)
		})
	})

	t.Run("applies defaults", func(t *testing.T) {
		controller := newPassthroughFixture(t)

		assert.Equal(t, "/api/auth", controller.Routes.Auth)
		assert.Equal(t, "/api/db", controller.Routes.Data)
		assert.Equal(t, "/api/health", controller.Routes.Health)
		assert.Equal(t, "/api/debug", controller.Routes.Debug)
		assert.Equal(t, "development", controller.Environment)
		assert.Equal(t, "session", controller.ContextKey)
	})

	t.Run("route overrides are honored", func(t *testing.T) {
		controller := newPassthroughFixture(t,
			navgate.WithPassthroughRoutes(&navgate.PassthroughRoutes{
				Auth:   "/proxy/auth",
				Data:   "/proxy/data",
				Health: "/healthz",
				Debug:  "/proxy/debug",
			}),
		)

		assert.Equal(t, "/proxy/auth", controller.Routes.Auth)
		assert.Equal(t, "/healthz", controller.Routes.Health)
	})
}

func TestPassthroughProxyForwards(t *testing.T) {
	var captured navgate.UpstreamRequest

	auth := navgate.UpstreamClientFunc(func(ctx context.Context, req navgate.UpstreamRequest) (*navgate.UpstreamResponse, error) {
		captured = req
		return &navgate.UpstreamResponse{
			StatusCode: http.StatusCreated,
			Header:     http.Header{"X-Upstream": []string{"auth"}},
			Body:       []byte(`{"ok":true}`),
		}, nil
	})

	controller := newPassthroughFixture(t, navgate.WithPassthroughAuthUpstream(auth))

	mockCtx := new(MockContext)
	mockCtx.On("Path").Return("/api/auth/login")
	mockCtx.On("Method").Return("POST")
	mockCtx.On("OriginalURL").Return("/api/auth/login?next=%2Fhome")
	mockCtx.On("Body").Return([]byte(`{"email":"doc@example.com"}`))
	mockCtx.On("Header", "Authorization").Return("Bearer tok-123")
	mockCtx.On("Header", "Content-Type").Return("application/json")
	mockCtx.On("Header", mock.Anything).Return("")
	mockCtx.On("Context").Return(context.Background())
	mockCtx.On("SetHeader", "X-Upstream", "auth").Return(nil)
	mockCtx.On("Status", http.StatusCreated).Return(nil)
	mockCtx.On("Send", []byte(`{"ok":true}`)).Return(nil)

	require.NoError(t, controller.AuthProxy(mockCtx))

	assert.Equal(t, "POST", captured.Method)
	assert.Equal(t, "login", captured.Path)
	assert.Equal(t, "next=%2Fhome", captured.Query)
	assert.Equal(t, "Bearer tok-123", captured.Header.Get("Authorization"))
	assert.Equal(t, "application/json", captured.Header.Get("Content-Type"))
	assert.Empty(t, captured.Header.Get("Cookie"), "empty request headers are not forwarded")
	assert.Equal(t, []byte(`{"email":"doc@example.com"}`), captured.Body)

	mockCtx.AssertExpectations(t)
}

func TestPassthroughProxyEnvelopes(t *testing.T) {
	t.Run("requests without a target are rejected", func(t *testing.T) {
		controller := newPassthroughFixture(t)

		mockCtx := new(MockContext)
		mockCtx.On("Path").Return("/api/auth")

		var status int
		var payload map[string]any
		captureJSON(mockCtx, &status, &payload)

		require.NoError(t, controller.AuthProxy(mockCtx))

		assert.Equal(t, goerrors.CodeBadRequest, status)
		assert.Equal(t, navgate.TextCodeMissingTarget, payload["text_code"])
	})

	t.Run("paths outside the allowlist are rejected", func(t *testing.T) {
		sink := &capturingSink{}
		controller := newPassthroughFixture(t,
			navgate.WithPassthroughAllowlists([]string{"login", "register/"}, nil),
			navgate.WithPassthroughActivitySink(sink),
		)

		mockCtx := new(MockContext)
		mockCtx.On("Path").Return("/api/auth/admin/keys")
		mockCtx.On("Locals", "session").Return(nil)
		mockCtx.On("Context").Return(context.Background())

		var status int
		var payload map[string]any
		captureJSON(mockCtx, &status, &payload)

		require.NoError(t, controller.AuthProxy(mockCtx))

		assert.Equal(t, goerrors.CodeForbidden, status)
		assert.Equal(t, navgate.TextCodeUpstreamNotAllowed, payload["text_code"])

		events := sink.byType(navgate.ActivityEventUpstreamFailure)
		require.Len(t, events, 1)
		assert.Equal(t, "auth", events[0].Metadata["service"])
		assert.Equal(t, "admin/keys", events[0].Metadata["path"])
		assert.Equal(t, "path not allowed", events[0].Metadata["reason"])
	})

	t.Run("allowlisted subpaths pass", func(t *testing.T) {
		controller := newPassthroughFixture(t,
			navgate.WithPassthroughAllowlists([]string{"login", "register/"}, nil),
		)

		mockCtx := new(MockContext)
		mockCtx.On("Path").Return("/api/auth/register/confirm")
		mockCtx.On("Method").Return("GET")
		mockCtx.On("OriginalURL").Return("/api/auth/register/confirm")
		mockCtx.On("Body").Return([]byte(nil))
		mockCtx.On("Header", mock.Anything).Return("")
		mockCtx.On("Context").Return(context.Background())
		mockCtx.On("SetHeader", "X-Upstream", "auth").Return(nil)
		mockCtx.On("Status", http.StatusOK).Return(nil)
		mockCtx.On("Send", []byte(`{}`)).Return(nil)

		require.NoError(t, controller.AuthProxy(mockCtx))
		mockCtx.AssertExpectations(t)
	})

	t.Run("traversal segments never forward", func(t *testing.T) {
		controller := newPassthroughFixture(t)

		mockCtx := new(MockContext)
		mockCtx.On("Path").Return("/api/db/../secrets")
		mockCtx.On("Locals", "session").Return(nil)
		mockCtx.On("Context").Return(context.Background())

		var status int
		var payload map[string]any
		captureJSON(mockCtx, &status, &payload)

		require.NoError(t, controller.DataProxy(mockCtx))

		assert.Equal(t, goerrors.CodeForbidden, status)
		assert.Equal(t, navgate.TextCodeUpstreamNotAllowed, payload["text_code"])
	})

	t.Run("upstream failures are relayed through the envelope", func(t *testing.T) {
		sink := &capturingSink{}
		failing := navgate.UpstreamClientFunc(func(ctx context.Context, req navgate.UpstreamRequest) (*navgate.UpstreamResponse, error) {
			return nil, goerrors.New("upstream request failed", goerrors.CategoryExternal).
				WithTextCode(navgate.TextCodeUpstreamFailure).
				WithCode(goerrors.CodeInternal)
		})

		controller := newPassthroughFixture(t,
			navgate.WithPassthroughDataUpstream(failing),
			navgate.WithPassthroughActivitySink(sink),
		)

		mockCtx := new(MockContext)
		mockCtx.On("Path").Return("/api/db/patients")
		mockCtx.On("Method").Return("GET")
		mockCtx.On("OriginalURL").Return("/api/db/patients")
		mockCtx.On("Body").Return([]byte(nil))
		mockCtx.On("Header", mock.Anything).Return("")
		mockCtx.On("Locals", "session").Return(nil)
		mockCtx.On("Context").Return(context.Background())

		var status int
		var payload map[string]any
		captureJSON(mockCtx, &status, &payload)

		require.NoError(t, controller.DataProxy(mockCtx))

		assert.Equal(t, goerrors.CodeInternal, status)
		assert.Equal(t, navgate.TextCodeUpstreamFailure, payload["text_code"])

		events := sink.byType(navgate.ActivityEventUpstreamFailure)
		require.Len(t, events, 1)
		assert.Equal(t, "data", events[0].Metadata["service"])
		assert.Equal(t, "patients", events[0].Metadata["path"])
	})
}

func TestPassthroughHealth(t *testing.T) {
	controller := newPassthroughFixture(t)

	mockCtx := new(MockContext)

	var status int
	var payload map[string]any
	captureJSON(mockCtx, &status, &payload)

	require.NoError(t, controller.Health(mockCtx))

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", payload["status"])
	assert.Equal(t, "development", payload["environment"])
	assert.Contains(t, payload, "memory")

	timestamp, ok := payload["timestamp"].(string)
	require.True(t, ok)
	_, err := time.Parse(time.RFC3339, timestamp)
	assert.NoError(t, err)
}

func TestPassthroughDebugAccess(t *testing.T) {
	t.Run("debug routes vanish outside development", func(t *testing.T) {
		controller := newPassthroughFixture(t,
			navgate.WithPassthroughEnvironment("production"),
		)

		mockCtx := new(MockContext)

		var status int
		var payload map[string]any
		captureJSON(mockCtx, &status, &payload)

		require.NoError(t, controller.DebugSession(mockCtx))

		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "Not found", payload["error"])
	})

	t.Run("debug routes honor the navigation debug gate", func(t *testing.T) {
		stubGate := &stubFeatureGate{
			enabled: map[string]bool{
				navgate.FeatureNavigationDebug: false,
			},
		}

		controller := newPassthroughFixture(t,
			navgate.WithPassthroughFeatureGate(stubGate),
		)

		mockCtx := new(MockContext)
		mockCtx.On("Context").Return(context.Background())

		var status int
		var payload map[string]any
		captureJSON(mockCtx, &status, &payload)

		require.NoError(t, controller.DebugSession(mockCtx))

		assert.Equal(t, goerrors.CodeForbidden, status)
		assert.Equal(t, navgate.TextCodeDebugDisabled, payload["text_code"])
		assert.Equal(t, []string{navgate.FeatureNavigationDebug}, stubGate.calls)
	})

	t.Run("session state is reported", func(t *testing.T) {
		store := navgate.NewSessionStore()
		require.NoError(t, store.Hydrate(context.Background(), nil))
		store.SetSession(context.Background(), &navgate.SessionUser{ID: "user-1", Role: navgate.RoleDoctor})

		controller := newPassthroughFixture(t,
			navgate.WithPassthroughSessionStore(store),
		)

		mockCtx := new(MockContext)
		mockCtx.On("Locals", "session").Return(nil)

		var status int
		var payload map[string]any
		captureJSON(mockCtx, &status, &payload)

		require.NoError(t, controller.DebugSession(mockCtx))

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, payload["hydrated"])
		assert.Nil(t, payload["request_session"])
		assert.NotEmpty(t, payload["session_error"])

		snapshot, ok := payload["store"].(navgate.Session)
		require.True(t, ok)
		assert.Equal(t, "user-1", snapshot.User.ID)
	})

	t.Run("redirect diagnostics are reported", func(t *testing.T) {
		resolver := navgate.NewResolver()
		// drive one redirect so the diagnostic key is set
		resolver.ResolveProtected(navgate.Session{Hydrated: true}, navgate.PermissionState{})

		controller := newPassthroughFixture(t,
			navgate.WithPassthroughResolver(resolver),
		)

		mockCtx := new(MockContext)

		var status int
		var payload map[string]any
		captureJSON(mockCtx, &status, &payload)

		require.NoError(t, controller.DebugRedirects(mockCtx))

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "anon", payload["last_notified_identity"])

		routes, ok := payload["routes"].(navgate.RouteTable)
		require.True(t, ok)
		assert.Equal(t, "/auth/login", routes.Login)
	})
}

func TestPassthroughTestSession(t *testing.T) {
	t.Run("requires a token service", func(t *testing.T) {
		controller := newPassthroughFixture(t)

		mockCtx := new(MockContext)

		var status int
		var payload map[string]any
		captureJSON(mockCtx, &status, &payload)

		require.NoError(t, controller.TestSession(mockCtx))

		assert.Equal(t, goerrors.CodeInternal, status)
		assert.Equal(t, "token service is not configured", payload["error"])
	})

	t.Run("rejects an unparseable payload", func(t *testing.T) {
		controller := newPassthroughFixture(t,
			navgate.WithPassthroughTokenService(newTestTokenService()),
		)

		mockCtx := new(MockContext)
		mockCtx.On("Bind", mock.Anything).Return(errors.New("bad form"))

		var status int
		var payload map[string]any
		captureJSON(mockCtx, &status, &payload)

		require.NoError(t, controller.TestSession(mockCtx))

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Failed to parse payload", payload["error"])
	})

	t.Run("rejects unknown roles", func(t *testing.T) {
		controller := newPassthroughFixture(t,
			navgate.WithPassthroughTokenService(newTestTokenService()),
		)

		mockCtx := new(MockContext)
		mockCtx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
			payload := args.Get(0).(*navgate.TestSessionPayload)
			payload.Role = "wizard"
		}).Return(nil)

		var status int
		var payload map[string]any
		captureJSON(mockCtx, &status, &payload)

		require.NoError(t, controller.TestSession(mockCtx))

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Invalid payload", payload["error"])
		assert.NotEmpty(t, payload["validation"])
	})

	t.Run("mints a scoped token for the requested role", func(t *testing.T) {
		tokens := newTestTokenService()
		controller := newPassthroughFixture(t,
			navgate.WithPassthroughTokenService(tokens),
		)

		mockCtx := new(MockContext)
		mockCtx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
			payload := args.Get(0).(*navgate.TestSessionPayload)
			payload.Role = "doctor"
			payload.Complete = true
			payload.Email = "doc@example.com"
			payload.TTLMinutes = 30
		}).Return(nil)

		var status int
		var payload map[string]any
		captureJSON(mockCtx, &status, &payload)

		require.NoError(t, controller.TestSession(mockCtx))
		require.Equal(t, http.StatusOK, status)

		token, ok := payload["token"].(string)
		require.True(t, ok)
		require.NotEmpty(t, token)

		claims, err := tokens.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, "doctor", claims.Role())
		assert.True(t, claims.ProfileComplete())

		user, ok := payload["user"].(*navgate.SessionUser)
		require.True(t, ok)
		_, err = uuid.Parse(user.ID)
		assert.NoError(t, err, "missing user IDs are filled with a generated UUID")

		expiresAt, err := time.Parse(time.RFC3339, payload["expires_at"].(string))
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(30*time.Minute), expiresAt, time.Minute)
	})

	t.Run("roles still onboarding never mint a completed session", func(t *testing.T) {
		tokens := newTestTokenService()
		controller := newPassthroughFixture(t,
			navgate.WithPassthroughTokenService(tokens),
		)

		mockCtx := new(MockContext)
		mockCtx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
			payload := args.Get(0).(*navgate.TestSessionPayload)
			payload.Role = "user"
			payload.Complete = true
		}).Return(nil)

		var status int
		var payload map[string]any
		captureJSON(mockCtx, &status, &payload)

		require.NoError(t, controller.TestSession(mockCtx))
		require.Equal(t, http.StatusOK, status)

		user, ok := payload["user"].(*navgate.SessionUser)
		require.True(t, ok)
		assert.True(t, user.NeedsProfileCompletion)

		claims, err := tokens.Validate(payload["token"].(string))
		require.NoError(t, err)
		assert.False(t, claims.ProfileComplete())
	})
}
