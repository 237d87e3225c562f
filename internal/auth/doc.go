// Package auth tracks the client's access session.
//
// The stored compact token is decoded locally without verifying its
// signature. That decode is an optimistic UI hint and nothing more: the
// gateway backend is the single authority on identity and expiry, and the
// local projection must never be used to grant privileged operations.
//
// # States
//
//	Unauthenticated -> no token, no guest flag
//	Guest           -> no token, local guest flag set
//	Authenticated   -> token decoded and not past its expiry hint
//	Expired         -> transient; clears local session data, then Unauthenticated
//
// The route guard (GuardRoute) keeps unauthenticated sessions on the auth
// entry view and keeps signed-in or guest sessions off it.
package auth
