package utils

import (
	"github.com/shirou/gopsutil/disk"
)

// DiskFree reports the free bytes of the filesystem holding path.
func DiskFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}
