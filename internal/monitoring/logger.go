// Package monitoring holds the diagnostic logger shared by the navigation
// packages.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Component is a log tag such as "Planner" or "Link". Messages logged through
// it are prefixed with the bracketed tag and routed through Logf, so muting
// Logf mutes every component.
type Component string

// Printf logs a message tagged with the component name.
func (c Component) Printf(format string, v ...interface{}) {
	Logf("["+string(c)+"] "+format, v...)
}
