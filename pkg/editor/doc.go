/*
Package editor implements the graph editor.

An operator opens a Draft of one question, edits its options and
conditional edges, and may create new branch-only questions inline. Such
questions carry a temporary identifier until Commit persists them, rewrites
the edges to the identifiers the store assigned and writes the final edge
list. Temporary identifiers never reach the store.
*/
package editor
