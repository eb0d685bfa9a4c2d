// Package tail follows a growing log file line by line.
package tail

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/tomb.v2"
)

const (
	DefaultPoll  = 500 * time.Millisecond
	DefaultRetry = 10 * time.Second
)

type Options struct {
	// Poll is the interval between reads of the file.
	Poll time.Duration

	// Retry is how long to wait before reopening a missing file.
	Retry time.Duration
}

// A Tailer delivers every complete line appended to a file after the
// tailer was started. When the file shrinks or another file is moved into
// its place, as happens when the server rotates its log, reading restarts
// from the beginning.
type Tailer struct {
	path   string
	opts   Options
	tomb   tomb.Tomb
	file   os.FileInfo
	offset int64
	buf    []byte

	Lines chan string
}

var errStop = fmt.Errorf("stop requested")

// Start starts following the file at path. Content already in the file is
// skipped. If the file does not exist yet, it is read from its start once
// it shows up.
func Start(path string, opts *Options) *Tailer {
	t := &Tailer{
		path:  filepath.Clean(path),
		Lines: make(chan string),
	}
	if opts != nil {
		t.opts = *opts
	}
	if t.opts.Poll == 0 {
		t.opts.Poll = DefaultPoll
	}
	if t.opts.Retry == 0 {
		t.opts.Retry = DefaultRetry
	}
	if info, err := os.Stat(t.path); err == nil {
		t.file = info
		t.offset = info.Size()
	}
	t.tomb.Go(t.loop)
	return t
}

// Dying returns a channel closed when the tailer starts terminating.
func (t *Tailer) Dying() <-chan struct{} {
	return t.tomb.Dying()
}

func (t *Tailer) Err() error {
	return t.tomb.Err()
}

// Stop stops the tailer. Lines not yet received are dropped, but no line
// is ever delivered partially or twice.
func (t *Tailer) Stop() error {
	t.tomb.Kill(errStop)
	err := t.tomb.Wait()
	if err != errStop {
		return err
	}
	return nil
}

func (t *Tailer) watch() (<-chan fsnotify.Event, func()) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logf("Cannot watch %s, polling only: %v", t.path, err)
		return nil, func() {}
	}
	// The directory is watched so that the watch survives log rotation.
	if err := watcher.Add(filepath.Dir(t.path)); err != nil {
		logf("Cannot watch %s, polling only: %v", filepath.Dir(t.path), err)
		watcher.Close()
		return nil, func() {}
	}
	go func() {
		for err := range watcher.Errors {
			debugf("Watcher error: %v", err)
		}
	}()
	return watcher.Events, func() { watcher.Close() }
}

func (t *Tailer) loop() error {
	events, closeWatch := t.watch()
	defer closeWatch()

	poll := time.NewTicker(t.opts.Poll)
	defer poll.Stop()

	for {
		select {
		case <-poll.C:
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if event.Name != t.path || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
		case <-t.tomb.Dying():
			return errStop
		}

		lines, err := t.read()
		if os.IsNotExist(err) {
			logf("Log %s does not exist, retrying in %v", t.path, t.opts.Retry)
			select {
			case <-time.After(t.opts.Retry):
			case <-t.tomb.Dying():
				return errStop
			}
			continue
		}
		if err != nil {
			logf("Cannot read %s: %v", t.path, err)
			continue
		}
		for _, line := range lines {
			select {
			case t.Lines <- line:
			case <-t.tomb.Dying():
				return errStop
			}
		}
	}
}

// read returns the complete lines appended since the last read, holding
// back a trailing partial line until it is terminated.
func (t *Tailer) read() ([]string, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	switch {
	case t.file != nil && !os.SameFile(t.file, info):
		debugf("Log %s was replaced, starting over", t.path)
		t.offset = 0
		t.buf = nil
	case info.Size() < t.offset:
		debugf("Log %s shrank from %d to %d bytes, starting over", t.path, t.offset, info.Size())
		t.offset = 0
		t.buf = nil
	}
	t.file = info
	if info.Size() == t.offset {
		return nil, nil
	}
	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(f, info.Size()-t.offset))
	if err != nil {
		return nil, err
	}
	t.offset += int64(len(data))
	t.buf = append(t.buf, data...)

	var lines []string
	for {
		i := bytes.IndexByte(t.buf, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimRight(t.buf[:i], "\r")))
		t.buf = t.buf[i+1:]
	}
	if len(t.buf) == 0 {
		t.buf = nil
	}
	return lines, nil
}
