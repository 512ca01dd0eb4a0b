package stats

import (
	"testing"

	"github.com/c9s/goprocinfo/linux"

	"github.com/stretchr/testify/assert"
)

func TestSumInterfaces(t *testing.T) {
	tests := []struct {
		name   string
		ifaces []linux.NetworkStat
		want   NetworkCounters
	}{
		{
			name: "skips loopback",
			ifaces: []linux.NetworkStat{
				{Iface: "lo", RxBytes: 1000, TxBytes: 1000},
				{Iface: "eth0", RxBytes: 10, TxBytes: 20},
			},
			want: NetworkCounters{RxBytes: 10, TxBytes: 20},
		},
		{
			name: "sums interfaces",
			ifaces: []linux.NetworkStat{
				{Iface: "eth0", RxBytes: 10, TxBytes: 20},
				{Iface: "wlan0", RxBytes: 5, TxBytes: 1},
				{Iface: ""},
			},
			want: NetworkCounters{RxBytes: 15, TxBytes: 21},
		},
		{
			name: "empty",
			want: NetworkCounters{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, *SumInterfaces(tt.ifaces))
		})
	}
}

func TestMemUsedPercent(t *testing.T) {
	assert.Equal(t, 25.0, MemUsedPercent(1024, &linux.MemInfo{MemTotal: 4096}))
	assert.Equal(t, 0.0, MemUsedPercent(1024, &linux.MemInfo{}))
	assert.Equal(t, 0.0, MemUsedPercent(1024, nil))
}

func TestFindProcess_EmptyName(t *testing.T) {
	_, err := NewProcReader(t.TempDir()).FindProcess(".exe")
	assert.ErrorIs(t, err, ErrProcessNotFound)
}

func TestMatchName(t *testing.T) {
	tests := []struct {
		comm string
		name string
		want bool
	}{
		{comm: "saveany-bot", name: "saveany-bot", want: true},
		{comm: "saveany-bot", name: "saveany-bot.exe", want: true},
		{comm: "a-very-long-nam", name: "a-very-long-name-bot", want: true},
		{comm: "saveany", name: "saveany-bot", want: false},
		{comm: "", name: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.comm+"/"+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchName(tt.comm, tt.name))
		})
	}
}
