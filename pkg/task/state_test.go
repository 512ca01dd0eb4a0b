package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Tokens(t *testing.T) {
	tests := []struct {
		status Status
		token  string
	}{
		{Queued, "排队中"},
		{Initializing, "初始化"},
		{Started, "开始下载"},
		{Downloading, "下载中"},
		{Completed, "已完成"},
		{Cancelled, "已取消"},
		{Failed, "失败"},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.token, tt.status.String())

			var s Status
			require.NoError(t, s.UnmarshalText([]byte(tt.token)))
			assert.Equal(t, tt.status, s)
		})
	}

	assert.Equal(t, "unknown", Status(99).String())
}

func TestStatus_Terminal(t *testing.T) {
	for _, s := range []Status{Completed, Cancelled, Failed} {
		assert.True(t, s.Terminal(), s.String())
		assert.False(t, s.Active(), s.String())
	}
	for _, s := range []Status{Queued, Initializing, Started, Downloading} {
		assert.False(t, s.Terminal(), s.String())
		assert.True(t, s.Active(), s.String())
	}
}

func TestValidStateTransition(t *testing.T) {
	tests := []struct {
		name string
		src  Status
		dst  Status
		want bool
	}{
		{name: "queued to initializing", src: Queued, dst: Initializing, want: true},
		{name: "queued skips to downloading", src: Queued, dst: Downloading, want: true},
		{name: "started to downloading", src: Started, dst: Downloading, want: true},
		{name: "downloading repeats", src: Downloading, dst: Downloading, want: true},
		{name: "downloading to failed", src: Downloading, dst: Failed, want: true},
		{name: "queued straight to cancelled", src: Queued, dst: Cancelled, want: true},
		{name: "no backwards move", src: Downloading, dst: Started, want: false},
		{name: "no return to queued", src: Initializing, dst: Queued, want: false},
		{name: "completed is absorbing", src: Completed, dst: Downloading, want: false},
		{name: "failed cannot complete", src: Failed, dst: Completed, want: false},
		{name: "cancelled cannot repeat", src: Cancelled, dst: Cancelled, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidStateTransition(tt.src, tt.dst))
		})
	}
}
