// Package httpapi exposes the integration manager over HTTP using
// gin. Every endpoint answers with the same JSON envelope: a done
// flag, an optional data payload, an optional message, and for the
// OAuth URL endpoint an authorization URL. Expected failures come back
// with HTTP 200 and done set to false; only rejected add parameters
// produce a 400. Panics are recovered at the handler boundary and
// degraded to the same envelope.
package httpapi
