package probe

import (
	"bytes"
	"io"
	"os"
	"strings"
	"time"
)

// CheckErrorDensity counts error-class lines in the tail of the gateway's
// error log. A log not modified within the freshness window is ignored
// entirely rather than stale-counted.
func (b *Battery) CheckErrorDensity() int {
	path := b.gw.ErrorLog
	if path == "" {
		return 0
	}
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	if time.Since(fi.ModTime()) > b.mon.ErrorLogWindow {
		return 0
	}
	lines, err := tailLines(path, b.mon.ErrorTailLines)
	if err != nil {
		b.log.Warn("error log scan failed", "path", path, "err", err)
		return 0
	}
	count := 0
	for _, line := range lines {
		l := strings.ToLower(line)
		if strings.Contains(l, "error") || strings.Contains(l, "exception") || strings.Contains(l, "fatal") {
			count++
		}
	}
	return count
}

// tailLines reads the last n lines of a file without loading the whole
// file; it scans backwards in fixed-size chunks from the end.
func tailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	const chunk = 8 * 1024
	var buf []byte
	offset := fi.Size()
	for offset > 0 && bytes.Count(buf, []byte{'\n'}) <= n {
		step := int64(chunk)
		if step > offset {
			step = offset
		}
		offset -= step
		part := make([]byte, step)
		if _, err := f.ReadAt(part, offset); err != nil && err != io.EOF {
			return nil, err
		}
		buf = append(part, buf...)
	}
	lines := strings.Split(strings.TrimRight(string(buf), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
