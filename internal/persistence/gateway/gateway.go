// Package gateway loads, saves and resets profile documents over a Store,
// falling back to fresh defaults whenever a stored document is missing or
// unreadable.
package gateway

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"bigharvest.farm/internal/persistence/archive"
	"bigharvest.farm/internal/sim/farm"
)

// DefaultProfile is used when a caller names no profile.
const DefaultProfile = "default"

const maxProfileLen = 64

// Store persists raw documents by profile. A profile that was never saved
// must be reported with an error wrapping fs.ErrNotExist.
type Store interface {
	Load(profile string) ([]byte, error)
	Save(profile string, doc []byte) error
	Profiles() ([]string, error)
}

// ResetRecorder is implemented by stores that keep a reset history.
type ResetRecorder interface {
	RecordReset(profile, archivePath string, at time.Time) error
}

type Gateway struct {
	store      Store
	shaper     *farm.Shaper
	archiveDir string
	logger     *log.Logger
	now        func() time.Time
}

// New builds a gateway. An empty archiveDir disables reset archives.
func New(store Store, shaper *farm.Shaper, archiveDir string, logger *log.Logger) *Gateway {
	return &Gateway{
		store:      store,
		shaper:     shaper,
		archiveDir: archiveDir,
		logger:     logger,
		now:        time.Now,
	}
}

func (g *Gateway) Shaper() *farm.Shaper { return g.shaper }

// SanitizeProfile keeps [A-Za-z0-9_-], truncates to 64 characters and maps
// the empty result to DefaultProfile.
func SanitizeProfile(p string) string {
	var b strings.Builder
	for _, r := range p {
		if b.Len() >= maxProfileLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return DefaultProfile
	}
	return b.String()
}

// Load returns the normalized document of a profile. Missing and malformed
// documents yield a fresh default with a nil error; only storage failures are
// returned, together with the default so callers may keep going.
func (g *Gateway) Load(profile string) (*farm.State, error) {
	now := g.now().UnixMilli()
	raw, err := g.store.Load(profile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return g.shaper.Default(now), nil
		}
		g.logf("load %s: %v", profile, err)
		return g.shaper.Default(now), fmt.Errorf("load %s: %w", profile, err)
	}
	s, err := g.shaper.Decode(raw, now)
	if err != nil {
		g.logf("load %s: falling back to defaults: %v", profile, err)
	}
	return s, nil
}

// Save encodes and stores s.
func (g *Gateway) Save(profile string, s *farm.State) error {
	doc, err := farm.Encode(s)
	if err != nil {
		return err
	}
	return g.SaveRaw(profile, doc)
}

// SaveRaw stores an already encoded document.
func (g *Gateway) SaveRaw(profile string, doc []byte) error {
	if err := g.store.Save(profile, doc); err != nil {
		g.logf("save %s: %v", profile, err)
		return fmt.Errorf("save %s: %w", profile, err)
	}
	return nil
}

// Import normalizes a client supplied document and stores it.
func (g *Gateway) Import(profile string, raw []byte) (*farm.State, error) {
	s, err := g.shaper.Decode(raw, g.now().UnixMilli())
	if err != nil {
		return nil, err
	}
	if err := g.Save(profile, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Reset archives the current document, if any, and replaces it with a fresh
// default. It returns the new document and the archive path.
func (g *Gateway) Reset(profile string) (*farm.State, string, error) {
	at := g.now()
	var archived string
	raw, err := g.store.Load(profile)
	switch {
	case err == nil && g.archiveDir != "":
		sum := archive.Summary{}
		if prev, derr := g.shaper.Decode(raw, at.UnixMilli()); derr == nil {
			sum = archive.Summary{Version: prev.Version, Money: prev.Money, XP: prev.XP}
		}
		archived, err = archive.ArchiveReset(g.archiveDir, profile, at, raw, sum)
		if err != nil {
			g.logf("reset %s: archive failed: %v", profile, err)
			archived = ""
		}
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		g.logf("reset %s: reading previous document: %v", profile, err)
	}

	fresh := g.shaper.Default(at.UnixMilli())
	if err := g.Save(profile, fresh); err != nil {
		return fresh, archived, err
	}
	if rr, ok := g.store.(ResetRecorder); ok {
		if err := rr.RecordReset(profile, archived, at); err != nil {
			g.logf("reset %s: record failed: %v", profile, err)
		}
	}
	return fresh, archived, nil
}

func (g *Gateway) Profiles() ([]string, error) { return g.store.Profiles() }

func (g *Gateway) logf(format string, args ...any) {
	if g.logger != nil {
		g.logger.Printf(format, args...)
	}
}
