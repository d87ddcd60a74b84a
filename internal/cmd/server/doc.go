// Package serverrun wires config, journal, delivery engines, and the
// dispatcher into a single blocking run, with signal-driven shutdown.
package serverrun
