package logsource

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultPollInterval = time.Second

// Follower tails a log file like `tail -F`. Writes are picked up through
// fsnotify and, as a fallback for file systems without inotify, by polling.
// Truncation and rotation restart reading at the top of the new file.
type Follower struct {
	path      string
	fromStart bool
	poll      time.Duration
	log       zerolog.Logger

	file     *os.File
	reader   *bufio.Reader
	offset   int64
	partial  strings.Builder
	dropping bool
}

func NewFollower(path string, fromStart bool, poll time.Duration) *Follower {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Follower{
		path:      filepath.Clean(path),
		fromStart: fromStart,
		poll:      poll,
		log:       log.Logger.With().Str("module", "follower").Str("file", path).Logger(),
	}
}

func (f *Follower) Run(ctx context.Context, h Handler) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "could not create file watcher")
	}
	defer watcher.Close()

	// watch the directory so a rotated file is noticed when it is recreated
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return errors.Wrapf(err, "could not watch %s", filepath.Dir(f.path))
	}

	if err := f.open(!f.fromStart); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	defer f.close()

	ticker := time.NewTicker(f.poll)
	defer ticker.Stop()

	for {
		f.drain(h)

		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}

			switch {
			case ev.Has(fsnotify.Create):
				f.log.Debug().Msg("log file created, reading from start")
				f.drain(h)
				f.close()
				if err := f.open(false); err != nil {
					f.log.Error().Err(err).Msg("could not open recreated log file")
				}
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				f.log.Debug().Msg("log file moved away")
				f.drain(h)
				f.close()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.log.Error().Err(err).Msg("file watcher error")

		case <-ticker.C:
			if f.file == nil {
				if err := f.open(false); err != nil && !errors.Is(err, os.ErrNotExist) {
					f.log.Error().Err(err).Msg("could not open log file")
				}
				continue
			}
			f.checkTruncated()
		}
	}
}

func (f *Follower) open(seekEnd bool) error {
	file, err := os.Open(f.path)
	if err != nil {
		return errors.Wrapf(err, "could not open %s", f.path)
	}

	f.offset = 0
	if seekEnd {
		off, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			file.Close()
			return errors.Wrapf(err, "could not seek %s", f.path)
		}
		f.offset = off
	}

	f.file = file
	f.reader = bufio.NewReader(file)
	f.partial.Reset()
	f.dropping = false

	return nil
}

func (f *Follower) close() {
	if f.file != nil {
		f.file.Close()
	}
	f.file = nil
	f.reader = nil
}

func (f *Follower) checkTruncated() {
	info, err := f.file.Stat()
	if err != nil {
		return
	}
	if info.Size() >= f.offset {
		return
	}

	f.log.Debug().Msgf("log file truncated from %d to %d bytes", f.offset, info.Size())

	if _, err := f.file.Seek(0, io.SeekStart); err != nil {
		f.log.Error().Err(err).Msg("could not rewind truncated log file")
		return
	}
	f.offset = 0
	f.reader.Reset(f.file)
	f.partial.Reset()
	f.dropping = false
}

// drain hands every complete line to h. A trailing line without newline is
// kept until the rest of it arrives. Lines over MaxLineSize are dropped.
func (f *Follower) drain(h Handler) {
	if f.reader == nil {
		return
	}

	for {
		chunk, err := f.reader.ReadSlice('\n')
		f.offset += int64(len(chunk))

		if errors.Is(err, bufio.ErrBufferFull) {
			f.appendPartial(chunk)
			continue
		}

		if err != nil {
			f.appendPartial(chunk)
			if !errors.Is(err, io.EOF) {
				f.log.Error().Err(err).Msg("could not read log file")
			}
			return
		}

		f.appendPartial(chunk)

		if f.dropping {
			f.dropping = false
			f.partial.Reset()
			continue
		}

		line := trimLine(f.partial.String())
		f.partial.Reset()

		h(line)
	}
}

func (f *Follower) appendPartial(b []byte) {
	if f.dropping {
		return
	}

	if f.partial.Len()+len(b) > MaxLineSize+1 {
		f.log.Warn().Msgf("dropped log line longer than %d bytes", MaxLineSize)
		f.partial.Reset()
		f.dropping = true
		return
	}

	f.partial.Write(b)
}
