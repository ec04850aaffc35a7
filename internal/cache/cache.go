// Package cache provides the content-addressed artifact store used for
// synthesized speech and alignment results. Entries are keyed by a
// hash of a canonical JSON rendering of the request parameters, so
// identical requests map to the same directory across runs.
package cache

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"os"
	"path/filepath"
	"reflect"

	"github.com/klauspost/compress/zstd"
)

var (
	// ErrNotAMapping is returned by HashData when the input does not
	// marshal as a JSON object.
	ErrNotAMapping = errors.New("cache: data must be a mapping")

	// ErrUnknownAlgo is returned for hash algorithm names other than
	// sha256, sha1, sha512 and md5.
	ErrUnknownAlgo = errors.New("cache: unknown hash algorithm")
)

// HashData hashes a mapping into a stable hex key. The mapping is
// rendered as compact JSON with sorted keys and HTML escaping off, so
// the digest does not depend on map iteration order. algo selects the
// hash function (empty means sha256); length truncates the hex digest
// when positive.
func HashData(data any, algo string, length int) (string, error) {
	if !isMapping(data) {
		return "", fmt.Errorf("%w, got %T", ErrNotAMapping, data)
	}

	canon, err := canonicalJSON(data)
	if err != nil {
		return "", fmt.Errorf("cache: marshal for hashing: %w", err)
	}

	var h hash.Hash
	switch algo {
	case "", "sha256":
		h = sha256.New()
	case "sha1":
		h = sha1.New()
	case "sha512":
		h = sha512.New()
	case "md5":
		h = md5.New()
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgo, algo)
	}
	h.Write(canon)

	digest := hex.EncodeToString(h.Sum(nil))
	if length > 0 && length < len(digest) {
		digest = digest[:length]
	}
	return digest, nil
}

func isMapping(data any) bool {
	if data == nil {
		return false
	}
	v := reflect.ValueOf(data)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return false
		}
		v = v.Elem()
	}
	return v.Kind() == reflect.Map || v.Kind() == reflect.Struct
}

// canonicalJSON renders data compactly with HTML escaping disabled.
// encoding/json already sorts map keys.
func canonicalJSON(data any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Cache is a directory of content-addressed entries. Each entry is a
// subdirectory named by the digest of its descriptor, holding whatever
// artifact files the caller stores there. The zero value is not
// usable; set at least Dir.
type Cache struct {
	Dir      string
	Algo     string // hash algorithm, "" means sha256
	KeyLen   int    // truncate keys to this many hex chars, 0 means full
	Compress bool   // zstd-compress JSON artifacts
}

// Key returns the digest for a descriptor.
func (c *Cache) Key(desc map[string]any) (string, error) {
	return HashData(desc, c.Algo, c.KeyLen)
}

// EntryDir returns the directory path for a descriptor. The directory
// is not created.
func (c *Cache) EntryDir(desc map[string]any) (string, error) {
	key, err := c.Key(desc)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.Dir, key), nil
}

// Exists reports whether the named artifact is present for the
// descriptor, returning its path either way. With Compress set the
// compressed variant counts too.
func (c *Cache) Exists(desc map[string]any, filename string) (string, bool, error) {
	dir, err := c.EntryDir(desc)
	if err != nil {
		return "", false, err
	}
	path := filepath.Join(dir, filename)
	if fileExists(path) {
		return path, true, nil
	}
	if c.Compress && fileExists(path+zstExt) {
		return path, true, nil
	}
	return path, false, nil
}

const zstExt = ".zst"

// ReadJSON loads a stored JSON artifact into v. It returns false on a
// miss. A present but unreadable or corrupt entry also counts as a
// miss so callers fall back to recomputing.
func (c *Cache) ReadJSON(desc map[string]any, filename string, v any) (bool, error) {
	dir, err := c.EntryDir(desc)
	if err != nil {
		return false, err
	}
	path := filepath.Join(dir, filename)

	data, err := os.ReadFile(path + zstExt)
	if err == nil {
		dec, derr := zstd.NewReader(nil)
		if derr != nil {
			return false, fmt.Errorf("cache: zstd reader: %w", derr)
		}
		defer dec.Close()
		data, derr = dec.DecodeAll(data, nil)
		if derr != nil {
			return false, nil
		}
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return false, nil
		}
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, nil
	}
	return true, nil
}

// WriteJSON stores v as a JSON artifact for the descriptor, creating
// the entry directory as needed. The file is written to a temp name
// and renamed into place. With Compress set it is zstd-compressed and
// suffixed ".zst".
func (c *Cache) WriteJSON(desc map[string]any, filename string, v any) error {
	dir, err := c.EntryDir(desc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache: create entry dir: %w", err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: marshal artifact: %w", err)
	}

	path := filepath.Join(dir, filename)
	if c.Compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("cache: zstd writer: %w", err)
		}
		data = enc.EncodeAll(data, nil)
		enc.Close()
		path += zstExt
	}

	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("cache: write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cache: rename artifact: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
