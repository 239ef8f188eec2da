// Package persistence serializes index state to a directory of binary
// files and reads it back. Every file carries a magic number, a format
// version, a compression codec byte and a CRC32 checksum, so a truncated
// or corrupted file is detected before any state is restored.
package persistence
