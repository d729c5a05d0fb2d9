package helpers

// Convert from string to null terminated byte slice
func String2Bytes(str string) []byte {
	bytes := []byte(str)
	bytes = append(bytes, '\x00')

	return bytes
}

// Get the first string from a byte stream. Bytes without a terminator
// are returned whole.
func GetString(bytes []byte) string {
	for i, v := range bytes {
		if v == '\x00' {
			return string(bytes[:i])
		}
	}

	return string(bytes)
}

// Insert new_el at ndx, shifting the tail right
func Insert[T any](s []T, ndx int, new_el T) []T {
	var zero T
	s = append(s, zero)
	copy(s[ndx+1:], s[ndx:len(s)-1])
	s[ndx] = new_el
	return s
}

// Find item in slice and return it's index, if none found return -1
func FindIf[T any](haystack []T, eq func(el T) bool) int {
	for i, v := range haystack {
		if eq(v) {
			return i
		}
	}

	return -1
}

// Round n up to the next multiple of align. Alignments of 0 and 1 are no-ops.
func AlignUp(n, align uint64) uint64 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}
