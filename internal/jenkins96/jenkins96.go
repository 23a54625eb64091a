// Package jenkins96 implements Bob Jenkins' "lookup3" hash (hashlittle2),
// used by WoW root manifests to hash file paths into 64-bit name hashes.
//
// No actively maintained Go ecosystem package implements this specific
// 1997 algorithm, so it is hand-implemented here the way the teacher
// package hand-implements its own small stateless hash helpers
// (internal/hash/id.go in arloliu/mebo, there wrapping xxhash).
package jenkins96

const (
	initSeed1 uint32 = 0xDEADBEEF
	initSeed2 uint32 = 0xDEADBEEF
)

func rot(x uint32, k uint) uint32 {
	return (x << k) | (x >> (32 - k))
}

func mix(a, b, c *uint32) {
	*a -= *c
	*a ^= rot(*c, 4)
	*c += *b
	*b -= *a
	*b ^= rot(*a, 6)
	*a += *c
	*c -= *b
	*c ^= rot(*b, 8)
	*b += *a
	*a -= *c
	*a ^= rot(*c, 16)
	*c += *b
	*b -= *a
	*b ^= rot(*a, 19)
	*a += *c
	*c -= *b
	*c ^= rot(*b, 4)
	*b += *a
}

func final(a, b, c *uint32) {
	*c ^= *b
	*c -= rot(*b, 14)
	*a ^= *c
	*a -= rot(*c, 11)
	*b ^= *a
	*b -= rot(*a, 25)
	*c ^= *b
	*c -= rot(*b, 16)
	*a ^= *c
	*a -= rot(*c, 4)
	*b ^= *a
	*b -= rot(*a, 14)
	*c ^= *b
	*c -= rot(*b, 24)
}

// HashLittle2 computes Jenkins' lookup3 hashlittle2 over data, returning
// (pc, pb) where pc is the primary 32-bit hash and pb is the secondary
// 32-bit hash. The two halves combined as pb:pc (pb high, pc low) form the
// 64-bit hash used before the WoW-specific word swap.
func HashLittle2(data []byte, initPC, initPB uint32) (pc, pb uint32) {
	a := initSeed1 + uint32(len(data)) + initPC
	b := a
	c := a + initPB

	length := len(data)
	i := 0

	for length > 12 {
		a += uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24
		b += uint32(data[i+4]) | uint32(data[i+5])<<8 | uint32(data[i+6])<<16 | uint32(data[i+7])<<24
		c += uint32(data[i+8]) | uint32(data[i+9])<<8 | uint32(data[i+10])<<16 | uint32(data[i+11])<<24
		mix(&a, &b, &c)
		length -= 12
		i += 12
	}

	tail := data[i : i+length]

	var buf [12]byte
	copy(buf[:], tail)

	a += uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
	b += uint32(buf[4]) | uint32(buf[5])<<8 | uint32(buf[6])<<16 | uint32(buf[7])<<24
	c += uint32(buf[8]) | uint32(buf[9])<<8 | uint32(buf[10])<<16 | uint32(buf[11])<<24

	if length == 0 {
		return c, b
	}

	final(&a, &b, &c)

	return c, b
}

// HashPath computes the WoW root manifest's 64-bit name hash for a file
// path: Jenkins96 over the uppercased, forward-slashed path, with the two
// 32-bit halves of the result swapped.
func HashPath(path string) uint64 {
	norm := normalize(path)
	pc, pb := HashLittle2([]byte(norm), 0, 0)

	// WoW stores the hash with the two 32-bit halves swapped relative to
	// the raw hashlittle2 output (pb:pc becomes pc:pb).
	return uint64(pc)<<32 | uint64(pb)
}

func normalize(path string) string {
	buf := make([]byte, len(path))
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '\\' {
			c = '/'
		} else if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		buf[i] = c
	}

	return string(buf)
}
