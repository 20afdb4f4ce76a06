package eventlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	errspkg "github.com/drblury/chargestream/internal/gateway/errors"
	"github.com/drblury/chargestream/internal/gateway/jsoncodec"
)

const mirrorExt = ".ndjson"

// Mirror is the rotating append-only durable copy of the log: one record per
// NDJSON line, a new segment whenever the current one passes maxBytes.
// Eviction from the ring never touches mirror segments; they exist for
// recovery and audit, not for live serving.
type Mirror struct {
	mu       sync.Mutex
	dir      string
	prefix   string
	maxBytes int64

	f      *os.File
	size   int64
	segSeq int
	closed bool
}

// OpenMirror opens (or resumes) the mirror stream in dir. Existing segments
// with the same prefix are preserved; writing continues in a fresh segment
// numbered after the highest one found.
func OpenMirror(dir, prefix string, maxBytes int64) (*Mirror, error) {
	if dir == "" {
		dir = "."
	}
	if prefix == "" {
		prefix = "chargestream"
	}
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create mirror directory: %w", err)
	}

	m := &Mirror{dir: dir, prefix: prefix, maxBytes: maxBytes}
	last, err := m.lastSegment()
	if err != nil {
		return nil, err
	}
	m.segSeq = last
	if err := m.rotate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Append writes one record as a single NDJSON line, rotating first when the
// current segment is full.
func (m *Mirror) Append(rec Record) error {
	line, err := jsoncodec.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %d: %w", rec.Sequence, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errspkg.ErrMirrorClosed
	}
	if m.size > 0 && m.size+int64(len(line))+1 > m.maxBytes {
		if err := m.rotate(); err != nil {
			return err
		}
	}

	n, err := m.f.Write(append(line, '\n'))
	m.size += int64(n)
	if err != nil {
		return fmt.Errorf("write mirror segment: %w", err)
	}
	return nil
}

// Scan replays every mirrored record across all segments in write order.
// Used by recovery and audit tooling; the live endpoint never reads here.
func (m *Mirror) Scan(fn func(Record) error) error {
	segments, err := m.segments()
	if err != nil {
		return err
	}

	for _, path := range segments {
		if err := scanSegment(path, fn); err != nil {
			return err
		}
	}
	return nil
}

func scanSegment(path string, fn func(Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 1 {
			var rec Record
			if uerr := jsoncodec.Unmarshal(line, &rec); uerr != nil {
				return fmt.Errorf("corrupt mirror line in %s: %w", path, uerr)
			}
			if ferr := fn(rec); ferr != nil {
				return ferr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (m *Mirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	if m.f == nil {
		return nil
	}
	return m.f.Close()
}

// Dir returns the mirror directory.
func (m *Mirror) Dir() string { return m.dir }

func (m *Mirror) rotate() error {
	if m.f != nil {
		if err := m.f.Close(); err != nil {
			return err
		}
	}
	m.segSeq++
	path := filepath.Join(m.dir, fmt.Sprintf("%s.%06d%s", m.prefix, m.segSeq, mirrorExt))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open mirror segment: %w", err)
	}
	m.f = f
	m.size = 0
	return nil
}

func (m *Mirror) segments() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, m.prefix+".") || !strings.HasSuffix(name, mirrorExt) {
			continue
		}
		out = append(out, filepath.Join(m.dir, name))
	}
	sort.Strings(out)
	return out, nil
}

func (m *Mirror) lastSegment() (int, error) {
	segments, err := m.segments()
	if err != nil {
		return 0, err
	}
	if len(segments) == 0 {
		return 0, nil
	}

	last := filepath.Base(segments[len(segments)-1])
	numPart := strings.TrimSuffix(strings.TrimPrefix(last, m.prefix+"."), mirrorExt)
	var n int
	if _, err := fmt.Sscanf(numPart, "%d", &n); err != nil {
		return 0, nil
	}
	return n, nil
}
