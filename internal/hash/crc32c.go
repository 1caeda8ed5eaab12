package hash

import (
	"encoding/binary"
	"hash/crc32"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// CRC32C returns the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}

// CRC32CBigEndian returns the checksum of data as four big-endian bytes, the
// form object stores use in checksum headers.
func CRC32CBigEndian(data []byte) []byte {
	return binary.BigEndian.AppendUint32(nil, CRC32C(data))
}
