// Package resource bounds the background work done for snapshot mirroring:
// how many uploads run at once, how many bytes they may buffer and how fast
// they may read or write.
//
// A nil *Controller imposes no limits.
package resource
