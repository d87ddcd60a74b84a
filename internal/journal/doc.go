// Package journal persists delivery-failure records to disk for
// post-mortem inspection.
package journal
