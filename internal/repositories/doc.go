// Package repositories implements SQLite persistence for credentials and jobs.
//
// Key Implementations:
//   - [CredentialRepository] : users table, keyed by Spotify user id
//   - [JobRepository] : jobs table, keyed by destination playlist id and indexed by owner
//
// Both implement the contracts in internal/models. Optional string and time columns are
// stored as NULL when absent and read back as zero values.
package repositories
