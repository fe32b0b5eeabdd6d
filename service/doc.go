// Package service implements the integration manager's business
// operations: CRUD and test-message delivery over project integrations,
// the Slack OAuth exchange, and best-effort resolution of workspace and
// channel display names.
//
// Services are stateless; every operation takes a context and performs
// at most a handful of store reads/writes plus outbound Slack calls.
// Expected failures (validation, not-found, missing token, Slack API
// rejections) surface as typed errors that the HTTP layer folds into
// the uniform response envelope; only infrastructure faults propagate
// as plain wrapped errors.
package service
