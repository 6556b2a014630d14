// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("ann/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	mgr, err := annstore.New(annstore.WithMirror(store))
//
// Uploads go through the SDK's multipart upload manager, so large snapshots are
// sent in parallel parts.
package s3
