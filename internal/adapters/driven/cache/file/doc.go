// Package file provides JSON file implementations of the index state store
// and the metadata cache.
//
// Both files live in the configured cache directory and are replaced
// atomically on save, so a crash never leaves a truncated cache behind.
package file
