// Package dbus exposes the lanechime command bus as a D-Bus object.
// A controller performs a transaction by calling Write with a command and its
// parameters, then Read for the one-byte reply, or Transfer to do both in a
// single serialized call. The daemon emits ConnectionChanged whenever the
// audio sink connects or drops.
package dbus
