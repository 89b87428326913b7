//go:build !linux

package device

func physicalMemory() int64 {
	return 0
}
