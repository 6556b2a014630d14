// Package persistence frames, compresses and atomically writes index snapshots.
//
// A snapshot file is a fixed 32-byte header followed by the payload:
//
//	magic "ANN1" | version u16 | compression u8 | reserved u8 |
//	raw length u64 | stored length u64 | crc32(stored) u32 | reserved u32
//
// All integers are little-endian. The payload is stored as-is, zstd-compressed or
// lz4 block-compressed. Files are written to a temporary sibling, fsynced and
// renamed into place, so readers observe either the old or the new snapshot.
// Loading maps the file read-only and verifies the checksum before decoding.
package persistence
