// Package store persists HNSW graphs as a snapshot file plus a JSON sidecar.
//
// Every index lives under a stem derived from its identity:
//
//	<dir>/<stem>.hnsw       framed graph snapshot (see package persistence)
//	<dir>/<stem>.meta.json  {"space": "cosine", "ef": 128, "M": 32, ...}
//
// A store can mirror both files to a blobstore.BlobStore. Uploads run in the
// background after each save and are used to restore an index whose local
// snapshot has disappeared.
package store
