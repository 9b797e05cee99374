// Package auth provides optional authentication and rate limiting for the
// playground API.
//
// Authenticators vote on each request: Yes (identity found), No
// (credentials present but invalid) or Abstain (credentials not theirs).
// An AuthChain asks them in order and falls back to a default decision
// when all abstain.
//
// Auth runs as HTTP middleware in front of the API routes. On success it
// stores the identity in the request context and scopes run history to the
// identity's tenant.
package auth
