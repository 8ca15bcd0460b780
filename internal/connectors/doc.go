// Package connectors provides the document sources LocalKnowledge can index.
// Each connector knows how to enumerate documents of one library layout and
// how to watch it for changes.
package connectors
