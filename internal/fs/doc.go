// Package fs abstracts the filesystem calls made when writing snapshots so that
// tests can inject write, sync and rename failures.
//
// Production code uses [Default]. Tests wrap it in a [FaultyFS]:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".hnsw", fs.Fault{FailOnSync: true})
package fs
