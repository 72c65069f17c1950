// Package persist writes and restores versioned snapshots of cache
// instances so a restart does not begin fully cold. Only entries with
// remaining TTL are written, and restored entries keep their residual
// TTL instead of getting a fresh one.
package persist

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoSnapshot       = errors.New("no snapshot found")
	ErrSnapshotCorrupt  = errors.New("snapshot is corrupt")
	errFrameLimits      = errors.New("snapshot frame exceeds sanity limits")
	errTruncatedTrailer = errors.New("snapshot trailer is truncated")
)

const (
	snapshotFile = "snapshot.bin.gz"

	markerEntry = 0x01
	markerEnd   = 0x00

	maxKeyLen   = 1 << 20
	maxValueLen = 1 << 30
)

// Target is the slice of the store snapshots need: a read-only walk over
// live entries and a TTL-based insert for restore.
type Target interface {
	Walk(fn func(key string, value any, expiresAt time.Time) bool)
	Set(key string, value any, ttl time.Duration)
}

// Dump writes all live entries of an instance into a fresh version
// directory under dir/instance and returns the snapshot path. When
// keepVersions > 0, older version directories beyond the limit are
// removed afterwards.
func Dump(ctx context.Context, dir, instance string, target Target, codec Codec, clk clock.Clock, keepVersions int) (string, error) {
	started := clk.Now()

	base := filepath.Join(dir, instance)
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot base dir: %w", err)
	}
	versionDir := filepath.Join(base, fmt.Sprintf("v%d", latestVersion(base)+1))
	if err := os.MkdirAll(versionDir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot version dir: %w", err)
	}
	path := filepath.Join(versionDir, snapshotFile)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create snapshot file: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriterSize(f, 1<<20)
	gz := gzip.NewWriter(bw)
	crc := crc32.NewIEEE()
	framed := io.MultiWriter(gz, crc)

	var entries int
	var walkErr error
	target.Walk(func(key string, value any, expiresAt time.Time) bool {
		if ctx.Err() != nil {
			walkErr = ctx.Err()
			return false
		}
		data, encErr := codec.Encode(value)
		if encErr != nil {
			walkErr = fmt.Errorf("encode value for key %q: %w", key, encErr)
			return false
		}
		if walkErr = writeFrame(framed, key, data, expiresAt.UnixNano()); walkErr != nil {
			return false
		}
		entries++
		return true
	})
	if walkErr != nil {
		return "", walkErr
	}

	if _, err = framed.Write([]byte{markerEnd}); err != nil {
		return "", fmt.Errorf("write snapshot end marker: %w", err)
	}
	var sum [4]byte
	binary.LittleEndian.PutUint32(sum[:], crc.Sum32())
	if _, err = gz.Write(sum[:]); err != nil {
		return "", fmt.Errorf("write snapshot checksum: %w", err)
	}

	if err = gz.Close(); err != nil {
		return "", fmt.Errorf("close gzip stream: %w", err)
	}
	if err = bw.Flush(); err != nil {
		return "", fmt.Errorf("flush snapshot file: %w", err)
	}

	if keepVersions > 0 {
		pruneVersions(base, keepVersions)
	}

	log.Info().
		Str("instance", instance).
		Str("path", path).
		Int("entries", entries).
		Dur("elapsed", clk.Now().Sub(started)).
		Msg("cache snapshot dumped")

	return path, nil
}

// Load restores the newest snapshot of an instance. Entries whose expiry
// already passed are skipped; the rest are inserted with their residual
// TTL. Returns the number of entries restored.
func Load(ctx context.Context, dir, instance string, target Target, codec Codec, clk clock.Clock) (int, error) {
	base := filepath.Join(dir, instance)
	version := latestVersion(base)
	if version < 0 {
		return 0, ErrNoSnapshot
	}
	path := filepath.Join(base, fmt.Sprintf("v%d", version), snapshotFile)

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open snapshot file: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(bufio.NewReaderSize(f, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close()

	crc := crc32.NewIEEE()
	framed := io.TeeReader(gz, crc)

	now := clk.Now()
	var restored, skipped int
	for {
		if ctx.Err() != nil {
			return restored, ctx.Err()
		}

		var marker [1]byte
		if _, err = io.ReadFull(framed, marker[:]); err != nil {
			return restored, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
		}
		if marker[0] == markerEnd {
			break
		}

		key, data, expiresAt, frameErr := readFrame(framed)
		if frameErr != nil {
			return restored, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, frameErr)
		}

		residual := time.Unix(0, expiresAt).Sub(now)
		if residual <= 0 {
			skipped++
			continue
		}

		value, decErr := codec.Decode(data)
		if decErr != nil {
			return restored, fmt.Errorf("decode value for key %q: %w", key, decErr)
		}
		target.Set(key, value, residual)
		restored++
	}

	want := crc.Sum32()
	var sum [4]byte
	if _, err = io.ReadFull(gz, sum[:]); err != nil {
		return restored, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, errTruncatedTrailer)
	}
	if binary.LittleEndian.Uint32(sum[:]) != want {
		return restored, fmt.Errorf("%w: checksum mismatch", ErrSnapshotCorrupt)
	}

	log.Info().
		Str("instance", instance).
		Str("path", path).
		Int("restored", restored).
		Int("expired_skipped", skipped).
		Msg("cache snapshot loaded")

	return restored, nil
}

func writeFrame(w io.Writer, key string, data []byte, expiresAt int64) error {
	var hdr [17]byte
	hdr[0] = markerEntry
	binary.LittleEndian.PutUint32(hdr[1:5], uint32(len(key)))
	binary.LittleEndian.PutUint32(hdr[5:9], uint32(len(data)))
	binary.LittleEndian.PutUint64(hdr[9:17], uint64(expiresAt))

	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := io.WriteString(w, key); err != nil {
		return fmt.Errorf("write frame key: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write frame value: %w", err)
	}
	return nil
}

// readFrame reads one entry frame after its marker byte was consumed.
func readFrame(r io.Reader) (key string, data []byte, expiresAt int64, err error) {
	var hdr [16]byte
	if _, err = io.ReadFull(r, hdr[:]); err != nil {
		return "", nil, 0, err
	}
	keyLen := binary.LittleEndian.Uint32(hdr[0:4])
	valLen := binary.LittleEndian.Uint32(hdr[4:8])
	expiresAt = int64(binary.LittleEndian.Uint64(hdr[8:16]))

	if keyLen > maxKeyLen || valLen > maxValueLen {
		return "", nil, 0, errFrameLimits
	}

	buf := make([]byte, keyLen+valLen)
	if _, err = io.ReadFull(r, buf); err != nil {
		return "", nil, 0, err
	}
	return string(buf[:keyLen]), buf[keyLen:], expiresAt, nil
}

// latestVersion returns the highest vN directory number under base,
// or -1 when none exist.
func latestVersion(base string) int {
	entries, err := os.ReadDir(base)
	if err != nil {
		return -1
	}
	latest := -1
	for _, e := range entries {
		if v, ok := versionNumber(e); ok && v > latest {
			latest = v
		}
	}
	return latest
}

func pruneVersions(base string, keep int) {
	entries, err := os.ReadDir(base)
	if err != nil {
		return
	}
	var versions []int
	for _, e := range entries {
		if v, ok := versionNumber(e); ok {
			versions = append(versions, v)
		}
	}
	if len(versions) <= keep {
		return
	}
	sort.Ints(versions)
	for _, v := range versions[:len(versions)-keep] {
		if err := os.RemoveAll(filepath.Join(base, fmt.Sprintf("v%d", v))); err != nil {
			log.Warn().Err(err).Int("version", v).Msg("prune old snapshot version failed")
		}
	}
}

func versionNumber(e os.DirEntry) (int, bool) {
	if !e.IsDir() || !strings.HasPrefix(e.Name(), "v") {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimPrefix(e.Name(), "v"))
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
