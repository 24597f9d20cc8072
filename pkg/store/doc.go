// Package store persists settings snapshots and hands them to a
// settings.Schema.
//
// A Store only loads and saves the flat key/value snapshot of a single Ref
// (one domain in one scope). Values are the codec text produced by
// settings.Record.Changes and are never interpreted by the store.
//
// Data flow:
//
//	Store -> Resolver (scoped merge) -> Schema.Load -> Session -> Record.Changes -> Store.Save
//
// Deterministic keys:
//
//	Ref.Identifier() yields `system/<domain>` for the system scope and
//	`<scope>/<id>/<domain>` for tenant, org, team and user scopes. Every
//	Store implementation keys its rows or files by that identifier.
//
// Concurrency control:
//
//	Each successful Save assigns a new UUIDv7 SnapshotID and bumps the ETag.
//	A Save carrying a non-empty ETag fails with ErrETagMismatch when the
//	stored snapshot has moved on.
package store
