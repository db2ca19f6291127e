// Package journal records what happened to a profile as compressed JSON lines.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"bigharvest.farm/internal/protocol"
)

// Entry kinds.
const (
	KindSession = "SESSION"
	KindAct     = "ACT"
	KindEvent   = "EVENT"
	KindReset   = "RESET"
)

type Entry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"t"`
	Profile   string           `json:"profile"`
	SessionID string           `json:"session_id,omitempty"`
	Kind      string           `json:"kind"`
	Action    string           `json:"action,omitempty"`
	OK        bool             `json:"ok,omitempty"`
	Code      string           `json:"code,omitempty"`
	Message   string           `json:"message,omitempty"`
	Events    []protocol.Event `json:"events,omitempty"`
}

const hourLayout = "2006-01-02-15"

// Journal is one profile's action log. Entries go to one zstd file per UTC
// hour of their timestamp, so files sort chronologically by name.
type Journal struct {
	profile string
	dir     string
	now     func() time.Time

	mu  sync.Mutex
	cur *segment
}

// Dir is where a profile's journal files live.
func Dir(dataDir, profile string) string {
	return filepath.Join(dataDir, "profiles", profile, "journal")
}

func Open(dataDir, profile string) *Journal {
	return &Journal{profile: profile, dir: Dir(dataDir, profile), now: time.Now}
}

// Write fills in the id, timestamp and profile when missing.
func (j *Journal) Write(e Entry) error {
	if j == nil {
		return nil
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time == 0 {
		e.Time = j.now().UnixMilli()
	}
	if e.Profile == "" {
		e.Profile = j.profile
	}
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	hour := time.UnixMilli(e.Time).UTC().Format(hourLayout)
	if j.cur == nil || j.cur.hour != hour {
		if err := j.closeLocked(); err != nil {
			return err
		}
		seg, err := openSegment(j.dir, hour)
		if err != nil {
			return err
		}
		j.cur = seg
	}
	return j.cur.append(line)
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeLocked()
}

func (j *Journal) closeLocked() error {
	if j.cur == nil {
		return nil
	}
	err := j.cur.close()
	j.cur = nil
	return err
}

// segment is the open file for one hour.
type segment struct {
	hour string
	f    *os.File
	zw   *zstd.Encoder
	bw   *bufio.Writer
}

func segmentPath(dir, hour string) string {
	return filepath.Join(dir, "journal-"+hour+".jsonl.zst")
}

// openSegment appends a new zstd frame to the hour's file.
func openSegment(dir, hour string) (*segment, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(segmentPath(dir, hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segment{hour: hour, f: f, zw: zw, bw: bufio.NewWriterSize(zw, 32*1024)}, nil
}

// append writes one line and flushes a complete block, so a reader sees every
// entry written so far even while the file is open.
func (s *segment) append(line []byte) error {
	if _, err := s.bw.Write(line); err != nil {
		return err
	}
	if err := s.bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := s.bw.Flush(); err != nil {
		return err
	}
	return s.zw.Flush()
}

func (s *segment) close() error {
	_ = s.bw.Flush()
	err := s.zw.Close()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadDir decodes every journal file in dir in chronological order. A
// truncated trailing frame from a writer that is still open is tolerated.
func ReadDir(dir string) ([]Entry, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	var out []Entry
	for _, p := range paths {
		entries, err := readFile(p)
		out = append(out, entries...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func readFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []Entry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return out, err
	}
	return out, nil
}
