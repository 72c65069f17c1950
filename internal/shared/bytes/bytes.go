package bytes

import "fmt"

// FmtMem renders a byte count for telemetry log lines.
func FmtMem(bytes uint64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%dTB %dGB", bytes/TB, bytes%TB/GB)
	case bytes >= GB:
		return fmt.Sprintf("%dGB %dMB", bytes/GB, bytes%GB/MB)
	case bytes >= MB:
		return fmt.Sprintf("%dMB %dKB", bytes/MB, bytes%MB/KB)
	case bytes >= KB:
		return fmt.Sprintf("%dKB %dB", bytes/KB, bytes%KB)
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}
