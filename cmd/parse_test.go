package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `2024-05-01 12:00:00 INFO Processing task: abc123
2024-05-01 12:00:01 INFO batch_file[abc123]: Starting
2024-05-01 12:00:01 INFO file[movie.mkv]: Starting file download
2024-05-01 12:00:02 DEBUG Progress update: abc123, 512/1024
2024-05-01 12:00:03 INFO Processing task: def456
2024-05-01 12:00:03 INFO file[song.flac]: Starting file download
2024-05-01 12:00:04 ERROR file[song.flac]: download failed: connection reset
`

func writeLog(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bot.log")
	require.NoError(t, os.WriteFile(path, []byte(sampleLog), 0o644))
	return path
}

func TestCommandParse_Text(t *testing.T) {
	command := CommandParse()

	var out bytes.Buffer
	command.SetOut(&out)
	command.SetArgs([]string{writeLog(t)})

	require.NoError(t, command.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "abc123")
	assert.Contains(t, lines[1], "下载中")
	assert.Contains(t, lines[1], "50.0%")
	assert.Contains(t, lines[1], "movie.mkv")
	assert.Contains(t, lines[2], "失败")
}

func TestCommandParse_JSON(t *testing.T) {
	command := CommandParse()

	var out bytes.Buffer
	command.SetOut(&out)
	command.SetArgs([]string{writeLog(t), "--output", "json"})

	require.NoError(t, command.Execute())

	var snap struct {
		Count  int `json:"count"`
		Active int `json:"active"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &snap))
	assert.Equal(t, 2, snap.Count)
	assert.Equal(t, 1, snap.Active)
}

func TestCommandParse_MissingFile(t *testing.T) {
	command := CommandParse()
	command.SetOut(&bytes.Buffer{})
	command.SetErr(&bytes.Buffer{})
	command.SetArgs([]string{filepath.Join(t.TempDir(), "missing.log")})

	assert.Error(t, command.Execute())
}

func TestCommandConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "botmon", "config.yaml")

	command := CommandConfigInit()
	command.SetOut(&bytes.Buffer{})
	command.SetArgs([]string{"--config-file", path})
	require.NoError(t, command.Execute())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "token:")

	// refuses to overwrite without --force
	command = CommandConfigInit()
	command.SetOut(&bytes.Buffer{})
	command.SetErr(&bytes.Buffer{})
	command.SetArgs([]string{"--config-file", path})
	assert.Error(t, command.Execute())
}

func TestCommandTasksClear_UnknownType(t *testing.T) {
	command := CommandTasksClear(&clientFlags{})
	command.SetOut(&bytes.Buffer{})
	command.SetErr(&bytes.Buffer{})
	command.SetArgs([]string{"--type", "running"})

	err := command.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown clear type: "running"`)
}
