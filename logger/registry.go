package logger

import "sync"

// components maps a package name to the logger Get returns for it.
var components sync.Map

// Register makes l the logger Get returns for name.
func Register(name string, l *Logger) {
	components.Store(name, l)
}

// Get returns the logger registered for name. Packages call it when no
// logger was injected. Unregistered names get the global logger tagged
// with name, so Get never returns nil.
func Get(name string) *Logger {
	if l, ok := components.Load(name); ok {
		return l.(*Logger)
	}
	return GetGlobalLogger().WithComponent(name)
}

// RegisterDefaults registers base, tagged with each name, for every name.
// Packages built without a logger then log through base.
func RegisterDefaults(base *Logger, names ...string) {
	for _, name := range names {
		Register(name, base.WithComponent(name))
	}
}
