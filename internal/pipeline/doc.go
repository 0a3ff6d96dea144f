// Package pipeline runs search sessions.
//
// A session is executed as an ordered list of steps: wait for the session
// provider, derive candidates, then probe them one by one. Each step moves
// the session through its state machine (see model.SessionState). Probing
// is strictly sequential inside a session; BatchRunner runs independent
// sessions side by side with errgroup.
//
// Design decision: Only InvalidInputError and SessionUnavailableError end a
// session with an error. Transport failures, Blocked pages and extraction
// failures are recorded on the session and the loop moves on, so callers
// always get the partial results.
package pipeline
