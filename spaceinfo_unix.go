//go:build linux || darwin || freebsd

package netmount

import "golang.org/x/sys/unix"

// spaceInfo returns the total and free byte counts of the filesystem
// backing path.
func spaceInfo(path string) (total, free uint64, err error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	total = uint64(stat.Blocks) * uint64(stat.Bsize)
	free = uint64(stat.Bavail) * uint64(stat.Bsize)
	return total, free, nil
}
