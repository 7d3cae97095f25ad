// Package internal holds id generation shared by the engine. Nothing under
// internal/ is part of the public API surface.
package internal
