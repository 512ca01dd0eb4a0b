package diskusage

import (
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// DiskUsage contains usage data and provides user-friendly access methods
type DiskUsage struct {
	path string
	stat *syscall.Statfs_t
}

// New returns the disk usage of the file system holding volumePath.
func New(volumePath string) (*DiskUsage, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(volumePath, &stat); err != nil {
		return nil, errors.Wrapf(err, "could not stat file system of %q", volumePath)
	}
	return &DiskUsage{path: volumePath, stat: &stat}, nil
}

// Free returns total free bytes on file system
func (du *DiskUsage) Free() uint64 {
	return du.stat.Bfree * uint64(du.stat.Bsize)
}

// Available return total available bytes on file system to an unprivileged user
func (du *DiskUsage) Available() uint64 {
	return du.stat.Bavail * uint64(du.stat.Bsize)
}

// Size returns total size in bytes of the file system
func (du *DiskUsage) Size() uint64 {
	return du.stat.Blocks * uint64(du.stat.Bsize)
}

// Used returns total bytes used in file system
func (du *DiskUsage) Used() uint64 {
	return du.Size() - du.Free()
}

// Usage returns percentage of use on the file system
func (du *DiskUsage) Usage() float64 {
	if du.Size() == 0 {
		return 0
	}
	return float64(du.Used()) / float64(du.Size()) * 100
}

type Report struct {
	Path          string  `json:"path"`
	Total         uint64  `json:"total"`
	Used          uint64  `json:"used"`
	Available     uint64  `json:"available"`
	UsedPercent   float64 `json:"used_percent"`
	AvailableText string  `json:"available_text"`
	TotalText     string  `json:"total_text"`
}

func (du *DiskUsage) Report() Report {
	return Report{
		Path:          du.path,
		Total:         du.Size(),
		Used:          du.Used(),
		Available:     du.Available(),
		UsedPercent:   du.Usage(),
		AvailableText: humanize.IBytes(du.Available()),
		TotalText:     humanize.IBytes(du.Size()),
	}
}
