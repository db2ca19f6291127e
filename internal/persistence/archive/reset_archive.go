// Package archive keeps a compressed copy of every profile document that a
// reset replaced.
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

type ResetArchiveMeta struct {
	Profile   string `json:"profile"`
	Archive   string `json:"archive"`
	CreatedAt string `json:"created_at"`
	Version   int    `json:"version"`
	Money     int64  `json:"money"`
	XP        int64  `json:"xp"`
	Bytes     int    `json:"bytes"`
}

// Summary is the part of a profile document copied into the meta file.
type Summary struct {
	Version int
	Money   int64
	XP      int64
}

// ArchiveReset writes doc to `dir/<profile>/<unixms>.json.zst` next to a
// `<unixms>.meta.json`. It returns the archive path.
func ArchiveReset(dir, profile string, at time.Time, doc []byte, sum Summary) (string, error) {
	if len(doc) == 0 {
		return "", nil
	}
	profileDir := filepath.Join(dir, profile)
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return "", err
	}
	stamp := strconv.FormatInt(at.UnixMilli(), 10)
	dst := filepath.Join(profileDir, stamp+".json.zst")
	if err := writeZstd(dst, doc); err != nil {
		return "", err
	}

	meta := ResetArchiveMeta{
		Profile:   profile,
		Archive:   filepath.Base(dst),
		CreatedAt: at.UTC().Format(time.RFC3339Nano),
		Version:   sum.Version,
		Money:     sum.Money,
		XP:        sum.XP,
		Bytes:     len(doc),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(profileDir, stamp+".meta.json"), b, 0o644)
	}
	return dst, nil
}

// List returns the archive metas of a profile, oldest first.
func List(dir, profile string) ([]ResetArchiveMeta, error) {
	paths, err := filepath.Glob(filepath.Join(dir, profile, "*.meta.json"))
	if err != nil {
		return nil, err
	}
	sort.Slice(paths, func(i, j int) bool { return stampOf(paths[i]) < stampOf(paths[j]) })
	out := make([]ResetArchiveMeta, 0, len(paths))
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return out, err
		}
		var m ResetArchiveMeta
		if err := json.Unmarshal(b, &m); err != nil {
			return out, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, m)
	}
	return out, nil
}

// Read decompresses an archived document.
func Read(path string) ([]byte, error) {
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
	return io.ReadAll(dec)
}

func writeZstd(dst string, doc []byte) error {
	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = out.Close()
		return err
	}
	if _, err := enc.Write(doc); err != nil {
		_ = enc.Close()
		_ = out.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

func stampOf(path string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSuffix(filepath.Base(path), ".meta.json"), 10, 64)
	return n
}
