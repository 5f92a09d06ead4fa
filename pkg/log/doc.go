// Package log provides structured logging for DigSiNet using zerolog.
//
// A single global Logger is configured once via Init. Packages log through
// it directly or through the WithComponent, WithSibling, WithHost and
// WithChannel child-logger helpers; no component takes a logger as a
// constructor argument.
package log
