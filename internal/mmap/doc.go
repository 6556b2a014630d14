// Package mmap maps snapshot files read-only into memory.
//
// On unix platforms the file is mapped with mmap(2) and access hints are passed
// through madvise(2). Elsewhere the file is read into memory and hints are ignored.
package mmap
