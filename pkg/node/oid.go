//go:build go1.21

package node

import "hash/crc32"

// CRC32Name hashes name the way the original hash-name interface
// expects: a 32-bit CRC over the name's bytes, stable across processes.
// No pack dependency offers a CRC32 implementation, so this uses the
// standard library's IEEE polynomial table directly.
func CRC32Name(name string) OID {
	return OID(crc32.ChecksumIEEE([]byte(name)))
}
