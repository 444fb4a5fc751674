/*
Package session implements per-key locking and wizard snapshot persistence.

The Manager serializes work on one key (a wizard session or an edited
question) within a process and, when a DistributedLocker is configured,
across replicas. Snapshot reads and writes go through the same lock so a
wizard can resume on any replica.
*/
package session
