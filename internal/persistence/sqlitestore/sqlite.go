// Package sqlitestore keeps profile documents, reset history and an action
// index in a single SQLite database.
package sqlitestore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"bigharvest.farm/internal/persistence/journal"
	"bigharvest.farm/internal/sim/catalogs"
	"bigharvest.farm/internal/sim/tuning"
)

type Store struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqAction reqKind = iota + 1
	reqFlush
)

type req struct {
	kind   reqKind
	action journal.Entry
	done   chan struct{}
}

type ResetRow struct {
	Profile     string
	ArchivePath string
	ResetAt     int64
}

type ActionRow struct {
	ID      string
	Time    int64
	Profile string
	Kind    string
	Action  string
	OK      bool
	Code    string
	Message string
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db: db,
		ch: make(chan req, 8192),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS profiles (
			profile TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			doc TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS resets (
			profile TEXT NOT NULL,
			reset_at INTEGER NOT NULL,
			archive_path TEXT NOT NULL,
			PRIMARY KEY (profile, reset_at)
		);`,
		`CREATE TABLE IF NOT EXISTS actions (
			id TEXT PRIMARY KEY,
			t INTEGER NOT NULL,
			profile TEXT NOT NULL,
			kind TEXT NOT NULL,
			action TEXT NOT NULL,
			ok INTEGER NOT NULL,
			code TEXT,
			message TEXT,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_profile_t ON actions(profile, t);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Load returns the stored document. A profile that was never saved yields an
// error wrapping fs.ErrNotExist.
func (s *Store) Load(profile string) ([]byte, error) {
	var doc string
	err := s.db.QueryRow(`SELECT doc FROM profiles WHERE profile = ?`, profile).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %q: %w", profile, fs.ErrNotExist)
	}
	if err != nil {
		return nil, err
	}
	return []byte(doc), nil
}

func (s *Store) Save(profile string, doc []byte) error {
	var head struct {
		Version int `json:"version"`
	}
	_ = json.Unmarshal(doc, &head)
	_, err := s.db.Exec(
		`INSERT INTO profiles(profile,version,doc,updated_at) VALUES(?,?,?,?)
		 ON CONFLICT(profile) DO UPDATE SET version=excluded.version, doc=excluded.doc, updated_at=excluded.updated_at`,
		profile, head.Version, string(doc), time.Now().UnixMilli(),
	)
	return err
}

func (s *Store) Profiles() ([]string, error) {
	rows, err := s.db.Query(`SELECT profile FROM profiles ORDER BY profile`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) RecordReset(profile, archivePath string, at time.Time) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO resets(profile,reset_at,archive_path) VALUES(?,?,?)`,
		profile, at.UnixMilli(), archivePath,
	)
	return err
}

func (s *Store) Resets(profile string) ([]ResetRow, error) {
	rows, err := s.db.Query(`SELECT profile, reset_at, archive_path FROM resets WHERE profile = ? ORDER BY reset_at`, profile)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ResetRow
	for rows.Next() {
		var r ResetRow
		if err := rows.Scan(&r.Profile, &r.ResetAt, &r.ArchivePath); err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordAction queues a journal entry for the action index. Entries are
// dropped when the writer falls behind; the journal files stay authoritative.
func (s *Store) RecordAction(e journal.Entry) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqAction, action: e}:
	default:
	}
}

// Flush blocks until every queued action is committed.
func (s *Store) Flush() {
	if s == nil || s.closed.Load() {
		return
	}
	done := make(chan struct{})
	s.ch <- req{kind: reqFlush, done: done}
	<-done
}

// Actions returns the newest indexed actions of a profile, newest first.
func (s *Store) Actions(profile string, limit int) ([]ActionRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, t, profile, kind, action, ok, COALESCE(code,''), COALESCE(message,'')
		 FROM actions WHERE profile = ? ORDER BY t DESC, id LIMIT ?`, profile, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ActionRow
	for rows.Next() {
		var r ActionRow
		var ok int
		if err := rows.Scan(&r.ID, &r.Time, &r.Profile, &r.Kind, &r.Action, &ok, &r.Code, &r.Message); err != nil {
			return out, err
		}
		r.OK = ok != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) UpsertCatalogs(cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil || cats == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	add := func(name, digest string, v any) {
		b, err := json.Marshal(v)
		if err != nil || len(b) == 0 {
			return
		}
		rows = append(rows, kv{name: name, digest: digest, json: b})
	}
	crops := make([]catalogs.CropDef, 0, len(cats.Crops.Order))
	for _, id := range cats.Crops.Order {
		crops = append(crops, cats.Crops.ByID[id])
	}
	add("crops", cats.Crops.Digest, crops)
	buildings := make([]catalogs.BuildingDef, 0, len(cats.Buildings.Order))
	for _, id := range cats.Buildings.Order {
		buildings = append(buildings, cats.Buildings.ByID[id])
	}
	add("buildings", cats.Buildings.Digest, buildings)
	add("items", cats.Items.Digest, cats.Items.ByID)
	add("quests", cats.Quests.Digest, cats.Quests.Defs)
	add("orders", cats.Orders.Digest, cats.Orders.Defs)
	add("seasons", cats.Seasons.Digest, cats.Seasons)

	// Tuning: store the values we actually apply.
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CatalogDigest returns the recorded digest of a catalog, or "" when absent.
func (s *Store) CatalogDigest(name string) (string, error) {
	var d string
	err := s.db.QueryRow(`SELECT digest FROM catalogs WHERE name = ?`, name).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return d, err
}

func (s *Store) loop() {
	ctx := context.Background()

	insertAction, _ := s.db.Prepare(`INSERT OR REPLACE INTO actions(id,t,profile,kind,action,ok,code,message,raw_json) VALUES(?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertAction != nil {
			_ = insertAction.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 200
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		switch r.kind {
		case reqFlush:
			commit()
			close(r.done)
			continue
		case reqAction:
			begin()
			if tx == nil || insertAction == nil {
				continue
			}
			e := r.action
			b, _ := json.Marshal(e)
			ok := 0
			if e.OK {
				ok = 1
			}
			if _, err := tx.Stmt(insertAction).Exec(e.ID, e.Time, e.Profile, e.Kind, e.Action, ok, e.Code, e.Message, string(b)); err != nil {
				_ = tx.Rollback()
				tx = nil
				continue
			}
			opCount++
		}
		// Readers share the single connection, so never hold a tx across an idle queue.
		if opCount >= commitEvery || len(s.ch) == 0 || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
	commit()
}
