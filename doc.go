// Package driftview is a client-side connection store for cursor-paginated
// "embedding dimension" rows. Each page is fetched through one GraphQL field
// selection, normalized into a Connection and merged into a keyed cache slot
// that lives in memory or in a NATS JetStream KV bucket.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│         cmd/driftview               │  Config, logging, metrics,
//	│   (load, seed, page, render)        │  table output
//	└─────────────────────────────────────┘
//	           ↓ drives
//	┌─────────────────────────────────────┐
//	│             pager                   │  In-flight guard, rate limit,
//	│  (LoadNext, Refetch, LoadMany)      │  stale-page detection
//	└─────────────────────────────────────┘
//	      ↓ fetches               ↓ commits
//	┌──────────────────┐   ┌──────────────────┐
//	│    fragment      │   │      slot        │
//	│ (query, decode)  │   │ (memory, NATS KV)│
//	└──────────────────┘   └──────────────────┘
//	      ↓ executes              ↑ merged by
//	┌──────────────────┐   ┌──────────────────┐
//	│     source       │   │   connection     │
//	│ (btree, drift)   │   │   (MergePage)    │
//	└──────────────────┘   └──────────────────┘
//
// # Pagination model
//
// A slot is keyed by "<parentID>.<ParentAlias>_<fieldAlias>_connection".
// Forward pages are appended and backward pages prepended; edges are
// deduplicated by node ID, keeping the first position and the newest values.
// The slot's PageInfo always mirrors the last merged page.
//
// A page that claims more results but carries no cursor halts the slot: its
// edges are kept for display and load-more is disabled until a refetch.
// A page without pageInfo is rejected and the slot is left unchanged.
//
// # Drift
//
// Each dimension's euclideanDistance is the distance between the centroids of
// its primary and reference embedding samples, or null when either set is
// empty. See package drift.
package driftview
