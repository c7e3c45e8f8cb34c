// Package logging provides structured slog logging with a size-rotated log
// file under ~/.semsearch/logs/. The server logs every request there; stderr
// output is optional and always disabled when serving MCP over stdio.
package logging
