package cgroup

import (
	"regexp"
	"strconv"

	"github.com/cuemby/rocker/pkg/rockerr"
)

var memoryLimitPattern = regexp.MustCompile(`^(\d+)(.*)$`)

// ParseMemoryLimit parses a memory limit string like "512M" or "2GB" into
// a byte count. Suffixes use SI multipliers, not binary ones: "" is bytes,
// K/KB/k/kb is x10^3, M/MB/m/mb is x10^6, G/GB/g/gb is x10^9, T/TB/t/tb is
// x10^12. An unrecognized suffix or a missing numeric part is
// InvalidMemoryLimit.
func ParseMemoryLimit(s string) (uint64, error) {
	m := memoryLimitPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, rockerr.New("cgroup.ParseMemoryLimit", rockerr.KindInvalidMemoryLimit, nil)
	}

	n, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, rockerr.New("cgroup.ParseMemoryLimit", rockerr.KindInvalidMemoryLimit, err)
	}

	var multiplier uint64
	switch m[2] {
	case "":
		multiplier = 1
	case "K", "KB", "k", "kb":
		multiplier = 1_000
	case "M", "MB", "m", "mb":
		multiplier = 1_000_000
	case "G", "GB", "g", "gb":
		multiplier = 1_000_000_000
	case "T", "TB", "t", "tb":
		multiplier = 1_000_000_000_000
	default:
		return 0, rockerr.New("cgroup.ParseMemoryLimit", rockerr.KindInvalidMemoryLimit, nil)
	}

	return n * multiplier, nil
}
