// Package database provides PostgreSQL connection pool management for
// the sample recorder. A single pool holds the latency sample archive;
// everything else in the process is in-memory.
package database
