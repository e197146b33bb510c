package reconcile

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSize converts a human readable size like "10G" or "512M" to
// bytes. Units B, K, M, G and T are powers of 1024; a bare number is
// taken as bytes.
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("size is required")
	}

	mult := uint64(1)
	num := s
	switch s[len(s)-1] {
	case 'B', 'b':
		num = s[:len(s)-1]
	case 'K', 'k':
		mult = 1 << 10
		num = s[:len(s)-1]
	case 'M', 'm':
		mult = 1 << 20
		num = s[:len(s)-1]
	case 'G', 'g':
		mult = 1 << 30
		num = s[:len(s)-1]
	case 'T', 't':
		mult = 1 << 40
		num = s[:len(s)-1]
	}

	v, err := strconv.ParseUint(strings.TrimSpace(num), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return v * mult, nil
}
