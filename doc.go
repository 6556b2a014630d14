// Package annstore maintains persistent approximate-nearest-neighbor indexes over
// embedding vectors.
//
// Every index is identified by an IndexKey (embedding source, purpose tag,
// dimension) and holds one HNSW graph in cosine space. Keys never share vectors
// and searches never cross keys.
//
// # Quick Start
//
//	m, _ := annstore.New(annstore.WithDir("./.ann_store"))
//	defer m.Close(ctx)
//
//	key := annstore.IndexKey{Source: "modelX", Purpose: "RETRIEVAL_DOCUMENT", Dim: 4}
//
//	n, _ := m.AddOrUpdate(ctx, key, 4, []annstore.Item{
//	    {Label: 1, Vector: []float32{1, 0, 0, 0}},
//	    {Label: 2, Vector: []float32{0, 1, 0, 0}},
//	})
//
//	results, _ := m.Search(ctx, key, 4, []float32{1, 0, 0, 0}, 2)
//	for _, r := range results {
//	    fmt.Println(r.Label, r.Distance, r.Similarity())
//	}
//
// # Mutation
//
// AddOrUpdate replaces labels that already exist: the old slot is tombstoned
// and reused by the insert. The graph grows on demand to
// max(slots+needed, ceil(capacity*1.5)+64). Rebuild discards an index and builds
// it from a complete set of items. Every mutation is written to disk before
// the call returns.
//
// # Search
//
// Search clamps k to the number of live labels and searches with a breadth of
// max(64, min(1024, 4k)), retrying once with max(128, min(2048, 8k)) when the
// graph cannot produce k results. A key without an index yields an empty result.
//
// # Storage
//
// Each index is stored as <stem>.hnsw (checksummed, optionally compressed graph
// snapshot) and <stem>.meta.json under the configured directory. WithMirror
// copies both files to S3, MinIO or any blobstore.BlobStore and restores them
// when the local snapshot is missing.
//
// # Errors
//
// Caller mistakes match ErrValidation. Unreadable or corrupt files surface as
// *StorageError; a corrupt snapshot is never silently replaced by an empty index.
package annstore
