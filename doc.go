// Package navgate provides auth-aware navigation primitives (session stores,
// routing decision resolvers, HTTP zone guards) plus passthrough plumbing for
// fronting upstream auth and data services.
//
// Session + permission state:
//   - SessionStore holds the hydrated Session and notifies subscribers when it
//     changes. Hydration runs a SessionLoader exactly once; a failed loader
//     still yields a hydrated, anonymous session so routing can proceed.
//   - PermissionStore tracks capability flags resolved from a feature gate.
//     Its Loading flag participates in routing decisions so guarded screens
//     never flash before permissions are known.
//
// Routing decisions:
//   - Resolver turns (Session, PermissionState) into a Decision: show the
//     loading state, redirect, or render. The protected, public, and root zone
//     rules are total functions with no hidden state beyond one-shot redirect
//     diagnostics keyed by session identity.
//   - LoadingGate enforces a minimum visible duration for loading states via a
//     deadline timer, so fast transitions don't flash the loader.
//
// HTTP surface:
//   - ZoneGate adapts decisions to middleware: loading maps to 503 with
//     Retry-After, redirects preserve the rejected route in a short-lived
//     cookie, render falls through to the handler chain.
//   - PassthroughController forwards /api/auth and /api/db traffic to the
//     configured upstreams and normalizes failures into JSON error envelopes.
//     Health and dev-only debug endpoints ride along.
package navgate
