package tvfs

import "bytes"

// ESTTable is the optional encoding-spec string pool, present when the
// header's encoding-spec flag is set. Container entries reference into it
// by index, mirroring the encoding table's own ESpec string pool.
type ESTTable struct {
	Specs []string
}

// Spec returns the ESpec string at index i.
func (t *ESTTable) Spec(i uint32) (string, bool) {
	if int(i) >= len(t.Specs) {
		return "", false
	}

	return t.Specs[i], true
}

func parseESTTable(data []byte, offset, size uint32) (*ESTTable, error) {
	if size == 0 {
		return &ESTTable{}, nil
	}

	region, err := slice(data, offset, size, "encoding-spec table")
	if err != nil {
		return nil, err
	}

	var specs []string

	rest := region
	for len(rest) > 0 {
		end := bytes.IndexByte(rest, 0)
		if end < 0 {
			specs = append(specs, string(rest))

			break
		}

		specs = append(specs, string(rest[:end]))
		rest = rest[end+1:]
	}

	return &ESTTable{Specs: specs}, nil
}

func appendESTTable(out []byte, t *ESTTable) []byte {
	for _, s := range t.Specs {
		out = append(out, s...)
		out = append(out, 0)
	}

	return out
}
