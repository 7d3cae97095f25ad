// Package token issues and verifies signed session handles: short JWTs that
// carry a session id and expire with the session. Transport layers hand the
// handle to clients instead of the raw id and verify it before touching the
// store. The engine itself never requires handles; they are an opt-in outer
// surface.
package token
