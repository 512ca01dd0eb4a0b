// Package logsource delivers the worker's log output line by line.
package logsource

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// MaxLineSize bounds a single log line. Longer lines are dropped.
const MaxLineSize = 1024 * 1024

// Handler receives lines in the order they were written.
type Handler func(line string)

// Scan reads lines from r until EOF or until ctx is done. r is read in its
// own goroutine so a blocking reader such as stdin cannot hold up shutdown.
// Only a failing reader ends Scan with an error.
func Scan(ctx context.Context, r io.Reader, h Handler) error {
	lines := make(chan string, 256)
	errCh := make(chan error, 1)

	go func() {
		defer close(lines)

		reader := bufio.NewReaderSize(r, 64*1024)

		var (
			line     []byte
			dropping bool
		)

		for {
			frag, isPrefix, err := reader.ReadLine()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					errCh <- errors.Wrap(err, "could not read log stream")
				}
				return
			}

			if dropping {
				dropping = isPrefix
				continue
			}

			if len(line)+len(frag) > MaxLineSize {
				log.Warn().Str("module", "logsource").Msgf("dropped log line longer than %d bytes", MaxLineSize)
				line = line[:0]
				dropping = isPrefix
				continue
			}

			line = append(line, frag...)
			if isPrefix {
				continue
			}

			select {
			case lines <- trimLine(string(line)):
			case <-ctx.Done():
				return
			}
			line = line[:0]
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errCh:
					return err
				default:
					return nil
				}
			}
			h(line)
		}
	}
}

func trimLine(s string) string {
	return strings.TrimRight(s, "\r\n")
}
