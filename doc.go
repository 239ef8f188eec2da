// Package vexdb implements an embedded approximate-nearest-neighbor vector
// index: a layered proximity graph with pluggable distance metrics,
// quality/latency profiles, int8 scalar quantization with exact re-ranking,
// brute-force fallback for guaranteed recall, directory persistence, and an
// auto-reindex monitor for live parameter migration.
//
// The index is a linked-in library component. It exposes no network or CLI
// surface; a surrounding collection layer consumes it through Insert,
// Search, Remove, Save and Load.
package vexdb
