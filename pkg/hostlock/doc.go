// Package hostlock serialises writes to a single management host across
// goroutines, one mutex per host name, created lazily on first use.
package hostlock
