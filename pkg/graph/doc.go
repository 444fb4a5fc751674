// Package graph is the read model of a questionnaire's conditional question
// graph. It derives the root sequence, option buckets and parent links from a
// flat question list, decides which branch questions an answer makes visible,
// and guards the structural invariants (no cycles, no dangling edges).
package graph
