// Package reindex tracks index parameter drift and drives the background
// rebuild lifecycle. A Manager decides when a collection has outgrown its
// graph parameters, guards the rebuild with an atomic state machine, and
// gates the swap behind a before/after benchmark comparison so a rebuild
// that regresses latency or recall is rolled back instead of promoted.
package reindex
