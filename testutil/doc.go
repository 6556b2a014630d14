// Package testutil provides testing utilities for annstore.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random vectors, computing exact
// cosine nearest neighbors, and verifying search recall.
//
//	rng := testutil.NewRNG(seed)
//	data := rng.UnitVectors(1000, 64)
//	truth := testutil.ExactTopK(query, labels, data, 10)
//	recall := testutil.ComputeRecall(truth, approx)
package testutil
