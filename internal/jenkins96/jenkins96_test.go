package jenkins96

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

// referenceHashLittle2 assembles the main-loop and tail 32-bit words via
// encoding/binary instead of the production code's manual byte-shift
// expressions, reusing only the (unquestioned) mix/final steps. It exists
// to catch word-assembly bugs like the one that used to drop buf[11] from
// the tail's `c` accumulation: that bug would make this function disagree
// with HashLittle2 for inputs whose length is a nonzero multiple of 12 (the
// only case where the tail fills buf[11]).
func referenceHashLittle2(data []byte, initPC, initPB uint32) (pc, pb uint32) {
	a := initSeed1 + uint32(len(data)) + initPC
	b := a
	c := a + initPB

	length := len(data)
	i := 0

	for length > 12 {
		var word [12]byte
		copy(word[:], data[i:i+12])
		a += binary.LittleEndian.Uint32(word[0:4])
		b += binary.LittleEndian.Uint32(word[4:8])
		c += binary.LittleEndian.Uint32(word[8:12])
		mix(&a, &b, &c)
		length -= 12
		i += 12
	}

	var buf [12]byte
	copy(buf[:], data[i:i+length])

	a += binary.LittleEndian.Uint32(buf[0:4])
	b += binary.LittleEndian.Uint32(buf[4:8])
	c += binary.LittleEndian.Uint32(buf[8:12])

	if length == 0 {
		return c, b
	}

	final(&a, &b, &c)

	return c, b
}

func TestHashLittle2MatchesReferenceAssembly(t *testing.T) {
	patterns := [][]byte{
		[]byte("INTERFACE/ICONS/INV_MISC_QUESTIONMARK.BLP"),
		[]byte("WORLD/EXPANSION06/DOODADS/GENERIC/CATACOMBS_RUINS.M2"),
	}

	for _, p := range patterns {
		for n := 0; n <= len(p); n++ {
			data := p[:n]
			wantPC, wantPB := referenceHashLittle2(data, 0, 0)
			gotPC, gotPB := HashLittle2(data, 0, 0)
			assert.Equalf(t, wantPC, gotPC, "pc mismatch at length %d (mod12=%d)", n, n%12)
			assert.Equalf(t, wantPB, gotPB, "pb mismatch at length %d (mod12=%d)", n, n%12)
		}
	}
}

// TestHashLittle2TailIncludesLastByte pins the specific defect: a 12-byte
// tail (length mod 12 == 0) must fold in buf[11], not silently drop it.
func TestHashLittle2TailIncludesLastByte(t *testing.T) {
	a := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	b := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 99}

	pcA, pbA := HashLittle2(a, 0, 0)
	pcB, pbB := HashLittle2(b, 0, 0)

	assert.False(t, pcA == pcB && pbA == pbB, "changing only the 12th tail byte must change the hash")
}

func TestHashPathDeterministic(t *testing.T) {
	h1 := HashPath("Test\\File\\Path.blp")
	h2 := HashPath("test/file/path.blp")
	assert.Equal(t, h1, h2, "hash must be case- and separator-insensitive")
}

func TestHashPathDiffers(t *testing.T) {
	a := HashPath("a.txt")
	b := HashPath("b.txt")
	assert.NotEqual(t, a, b)
}

func TestHashLittle2EmptyInput(t *testing.T) {
	pc, pb := HashLittle2(nil, 0, 0)
	assert.Equal(t, initSeed1, pc)
	assert.Equal(t, initSeed1, pb)
}

func TestHashLittle2StableAcrossCalls(t *testing.T) {
	data := []byte("INTERFACE/ICONS/INV_MISC_QUESTIONMARK.BLP")
	pc1, pb1 := HashLittle2(data, 0, 0)
	pc2, pb2 := HashLittle2(data, 0, 0)
	assert.Equal(t, pc1, pc2)
	assert.Equal(t, pb1, pb2)
}
