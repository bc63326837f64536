package incremental

import "strconv"

// formatID renders a monotonically increasing counter as the non-empty
// decimal string ids required by spec §3.
func formatID(n uint64) string {
	return strconv.FormatUint(n, 10)
}
