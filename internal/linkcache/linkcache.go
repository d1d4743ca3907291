// Package linkcache caches verified-and-assembled bytecode blobs keyed by
// a digest of their source text, so repeated viua-asm invocations on an
// unchanged file can skip the gathering/verification/emission pipeline
// and hand back the cached image directly.
package linkcache

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/mod/semver"
	_ "modernc.org/sqlite"
)

// EngineVersion is the running binary's version string, used to gate
// cache reuse: a blob cached by an older or newer assembler build is
// treated as a miss rather than risking a stale bytecode layout.
var EngineVersion = "v0.0.0-dev"

// Cache is a disk-backed store of (digest, engine version) -> bytecode
// image, backed by an embedded SQLite database.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if necessary) the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "linkcache: opening database")
	}
	const schema = `
CREATE TABLE IF NOT EXISTS blobs (
	digest      TEXT PRIMARY KEY,
	version     TEXT NOT NULL,
	bytecode    BLOB NOT NULL,
	cached_at   INTEGER NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "linkcache: creating schema")
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error { return c.db.Close() }

// Digest computes the cache key for source text: a blake2b-256 sum,
// hex-encoded.
func Digest(source []byte) (string, error) {
	sum := blake2b.Sum256(source)
	return hexEncode(sum[:]), nil
}

// Lookup returns the cached bytecode image for digest, if one exists and
// was written by a compatible engine version (same major.minor — a patch
// upgrade of the assembler is assumed not to change the wire format; a
// minor or major bump invalidates the cache since spec §6.1's container
// layout is versioned at that granularity).
func (c *Cache) Lookup(digest string) ([]byte, bool, error) {
	var version string
	var blob []byte
	err := c.db.QueryRow(`SELECT version, bytecode FROM blobs WHERE digest = ?`, digest).Scan(&version, &blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "linkcache: lookup")
	}
	if !compatible(version, EngineVersion) {
		return nil, false, nil
	}
	return blob, true, nil
}

// Store records the assembled bytecode for digest under the running
// engine's version.
func (c *Cache) Store(digest string, bytecode []byte) error {
	_, err := c.db.Exec(
		`INSERT INTO blobs (digest, version, bytecode, cached_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(digest) DO UPDATE SET version = excluded.version, bytecode = excluded.bytecode, cached_at = excluded.cached_at`,
		digest, EngineVersion, bytecode, time.Now().Unix(),
	)
	if err != nil {
		return errors.Wrap(err, "linkcache: store")
	}
	return nil
}

func compatible(cached, running string) bool {
	if !semver.IsValid(cached) || !semver.IsValid(running) {
		return cached == running
	}
	return semver.MajorMinor(cached) == semver.MajorMinor(running)
}

const hexDigits = "0123456789abcdef"

func hexEncode(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0x0f]
	}
	return string(out)
}
