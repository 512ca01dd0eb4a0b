package stats

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/c9s/goprocinfo/linux"
	"github.com/pkg/errors"
)

// ClockTicks is USER_HZ, the unit of utime/stime in /proc/<pid>/stat.
const ClockTicks = 100

var ErrProcessNotFound = errors.New("process not found")

// ProcessCounters is one reading of the monitored worker process.
type ProcessCounters struct {
	Pid        uint64
	Name       string
	ReadBytes  uint64 // rchar, includes socket reads
	WriteBytes uint64 // wchar, includes socket writes
	CPUTicks   uint64 // utime + stime
	RSSKb      uint64
	Threads    uint64
	Uptime     time.Duration
}

// NetworkCounters is the sum over all non-loopback interfaces.
type NetworkCounters struct {
	RxBytes uint64
	TxBytes uint64
}

type Reader interface {
	FindProcess(name string) (uint64, error)
	Process(pid uint64) (*ProcessCounters, error)
	Network() (*NetworkCounters, error)
	Memory() (*linux.MemInfo, error)
}

// ProcReader reads counters from a procfs mount.
type ProcReader struct {
	root string
}

func NewProcReader(root string) *ProcReader {
	if root == "" {
		root = "/proc"
	}
	return &ProcReader{root: root}
}

func (r *ProcReader) path(elem ...string) string {
	return filepath.Join(append([]string{r.root}, elem...)...)
}

// FindProcess returns the lowest pid whose process name matches name.
// A trailing ".exe" is ignored so Windows style names from config still match.
func (r *ProcReader) FindProcess(name string) (uint64, error) {
	name = strings.TrimSuffix(name, ".exe")
	if name == "" {
		return 0, errors.Wrap(ErrProcessNotFound, "empty process name")
	}

	maxPid, err := linux.ReadMaxPID(r.path("sys", "kernel", "pid_max"))
	if err != nil {
		return 0, errors.Wrap(err, "could not read pid_max")
	}

	pids, err := linux.ListPID(r.root, maxPid)
	if err != nil {
		return 0, errors.Wrapf(err, "could not list pids in %s", r.root)
	}

	var found uint64
	for _, pid := range pids {
		status, err := linux.ReadProcessStatus(r.path(strconv.FormatUint(pid, 10), "status"))
		if err != nil {
			// process exited between listing and reading
			continue
		}

		if MatchName(status.Name, name) {
			if found == 0 || pid < found {
				found = pid
			}
		}
	}

	if found == 0 {
		return 0, errors.Wrapf(ErrProcessNotFound, "no process named %q", name)
	}

	return found, nil
}

// MatchName reports whether a kernel comm value belongs to the executable name.
func MatchName(comm, name string) bool {
	name = strings.TrimSuffix(name, ".exe")
	if comm == "" || name == "" {
		return false
	}
	// comm is truncated to 15 bytes by the kernel
	return comm == name || (len(comm) == 15 && strings.HasPrefix(name, comm))
}

func (r *ProcReader) Process(pid uint64) (*ProcessCounters, error) {
	dir := strconv.FormatUint(pid, 10)

	status, err := linux.ReadProcessStatus(r.path(dir, "status"))
	if err != nil {
		return nil, errors.Wrapf(err, "could not read status of pid %d", pid)
	}

	io, err := linux.ReadProcessIO(r.path(dir, "io"))
	if err != nil {
		return nil, errors.Wrapf(err, "could not read io of pid %d", pid)
	}

	stat, err := linux.ReadProcessStat(r.path(dir, "stat"))
	if err != nil {
		return nil, errors.Wrapf(err, "could not read stat of pid %d", pid)
	}

	pc := &ProcessCounters{
		Pid:        pid,
		Name:       status.Name,
		ReadBytes:  io.RChar,
		WriteBytes: io.WChar,
		CPUTicks:   stat.Utime + stat.Stime,
		RSSKb:      status.VmRSS,
		Threads:    status.Threads,
	}

	if up, err := linux.ReadUptime(r.path("uptime")); err == nil {
		started := float64(stat.Starttime) / ClockTicks
		if up.Total > started {
			pc.Uptime = time.Duration((up.Total - started) * float64(time.Second))
		}
	}

	return pc, nil
}

func (r *ProcReader) Network() (*NetworkCounters, error) {
	ifaces, err := linux.ReadNetworkStat(r.path("net", "dev"))
	if err != nil {
		return nil, errors.Wrap(err, "could not read net/dev")
	}

	return SumInterfaces(ifaces), nil
}

// SumInterfaces adds up every interface except loopback.
func SumInterfaces(ifaces []linux.NetworkStat) *NetworkCounters {
	nc := &NetworkCounters{}
	for _, iface := range ifaces {
		if iface.Iface == "" || iface.Iface == "lo" {
			continue
		}
		nc.RxBytes += iface.RxBytes
		nc.TxBytes += iface.TxBytes
	}
	return nc
}

// Memory See https://godoc.org/github.com/c9s/goprocinfo/linux#MemInfo
func (r *ProcReader) Memory() (*linux.MemInfo, error) {
	memstats, err := linux.ReadMemInfo(r.path("meminfo"))
	if err != nil {
		return nil, errors.Wrap(err, "could not read meminfo")
	}

	return memstats, nil
}

// MemUsedPercent is the share of total memory held by rssKb.
func MemUsedPercent(rssKb uint64, mem *linux.MemInfo) float64 {
	if mem == nil || mem.MemTotal == 0 {
		return 0
	}
	return float64(rssKb) / float64(mem.MemTotal) * 100
}
