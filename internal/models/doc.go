// Package models defines the domain entities shared by the credential and job engine.
//
// Persistent entities:
//   - [Credential] : OAuth and browser session state for one Spotify user
//   - [Job] : a source playlist shuffled into a destination playlist
//
// Data transfer objects returned by the Spotify client:
//   - [UserProfile] : the authenticated user's profile
//   - [Playlist] : playlist metadata
//
// The [CredentialStore] and [JobStore] interfaces are the persistence contracts;
// internal/repositories implements them on SQLite.
package models
