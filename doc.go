// The [surrealodm] package tracks attribute changes of documents and persists them through
// a lifecycle of cancellable events.
//
// # Model Types
//
// A model type is defined once on a [model.Registry] and owns its casts, scopes, relations
// and hidden keys. Documents of the type keep their attributes in an [attributes.Store]
// that remembers the baseline of the last synchronization, so Save only writes what changed.
//
// Use [Open] to build a [Client] from a [config.Config]: it connects the configured storage
// backend, sets up logging, validation schemas and Prometheus metrics, and defines every
// configured model type.
//
// # Storage Backends
//
// The storage collaborator is a [storage.Connection]. The following backends are available:
//
//   - [github.com/surrealdb/surrealodm/pkg/storage/memory], in-process maps with CBOR dump and restore
//   - [github.com/surrealdb/surrealodm/pkg/storage/sqldoc], one JSON document column per row in SQLite or PostgreSQL
//   - [github.com/surrealdb/surrealodm/pkg/storage/surreal], SurrealDB through the surrealdb.go SDK
//
// # Lifecycle Events
//
// Saving fires validating, validated, saving, creating or updating, created or updated and saved.
// Deleting fires deleting and deleted. A listener returning [events.Abort] from validating,
// saving, creating, updating or deleting cancels the operation, which then returns false
// without an error.
package surrealodm
