package mappackservice

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	mappackdomain "github.com/edelkas/inne-sub000/app/modules/mappack/domain"
	"github.com/edelkas/inne-sub000/pkg/npp"
)

// Digest lists the ID, code and version of every mappack.
func (s *MappackService) Digest(ctx context.Context) ([]mappackdomain.DigestEntry, error) {
	packs, err := s.repo.ListMappacks(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mappack.Digest: %w", err)
	}
	entries := make([]mappackdomain.DigestEntry, 0, len(packs))
	for _, p := range packs {
		entries = append(entries, mappackdomain.DigestEntry{ID: p.ID, Code: p.Code, Version: p.Version})
	}
	return entries, nil
}

// WriteDigest replaces the digest file at path.
func (s *MappackService) WriteDigest(ctx context.Context, path string) error {
	entries, err := s.Digest(ctx)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("mappack.WriteDigest: %w", err)
	}
	defer f.Close()
	if err := EncodeDigest(f, entries); err != nil {
		return fmt.Errorf("mappack.WriteDigest: %w", err)
	}
	return f.Close()
}

// EncodeDigest writes one "<id> <code> <version>" line per entry.
func EncodeDigest(w io.Writer, entries []mappackdomain.DigestEntry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := fmt.Fprintf(bw, "%d %s %d\n", e.ID, strings.ToLower(e.Code), e.Version); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// DecodeDigest parses a digest file.
func DecodeDigest(r io.Reader) ([]mappackdomain.DigestEntry, error) {
	var entries []mappackdomain.DigestEntry
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, npp.Errorf("mappack.DecodeDigest", npp.ErrFormat, "line %d: expected 3 fields, got %d", n, len(fields))
		}
		id, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, npp.Errorf("mappack.DecodeDigest", npp.ErrFormat, "line %d: %w", n, err)
		}
		v, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, npp.Errorf("mappack.DecodeDigest", npp.ErrFormat, "line %d: %w", n, err)
		}
		entries = append(entries, mappackdomain.DigestEntry{ID: id, Code: fields[1], Version: v})
	}
	return entries, sc.Err()
}
