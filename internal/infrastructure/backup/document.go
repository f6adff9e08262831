// Package backup writes and reads export documents: the progress record in a
// checksummed envelope, stored as a file or in an S3-compatible bucket.
package backup

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/MirasRuslanJR/PyShark/internal/domain/progress"
	"github.com/MirasRuslanJR/PyShark/internal/domain/shared"
)

const domainName = "backup"

const (
	// Format identifies an export envelope.
	Format = "pyshark-progress"

	// Version is the envelope version written by Marshal.
	Version = 1
)

// Document is the export envelope.
type Document struct {
	Format     string          `json:"format"`
	Version    int             `json:"version"`
	ExportedAt time.Time       `json:"exportedAt"`
	Checksum   string          `json:"checksum,omitempty"`
	Record     json.RawMessage `json:"record"`
}

// Checksum returns the hex BLAKE2b-256 digest of the compacted record JSON.
func Checksum(recordJSON []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, recordJSON); err != nil {
		return "", err
	}
	sum := blake2b.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

// Marshal wraps record in an indented envelope.
func Marshal(record progress.Record, exportedAt time.Time) ([]byte, error) {
	raw, err := progress.Encode(record)
	if err != nil {
		return nil, err
	}
	sum, err := Checksum(raw)
	if err != nil {
		return nil, shared.CorruptState(domainName, "Marshal", err, "checksum record")
	}

	doc := Document{
		Format:     Format,
		Version:    Version,
		ExportedAt: exportedAt.UTC().Truncate(time.Second),
		Checksum:   sum,
		Record:     raw,
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, shared.CorruptState(domainName, "Marshal", err, "marshal envelope")
	}
	return out, nil
}

// Unmarshal accepts an envelope or a bare record and returns the validated
// record. Every failure is CorruptState.
func Unmarshal(data []byte) (progress.Record, error) {
	var probe struct {
		Format *string `json:"format"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return progress.Record{}, shared.CorruptState(domainName, "Unmarshal", err, "malformed JSON")
	}
	if probe.Format == nil {
		return progress.Decode(data)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return progress.Record{}, shared.CorruptState(domainName, "Unmarshal", err, "malformed envelope")
	}
	if doc.Format != Format {
		return progress.Record{}, shared.CorruptState(domainName, "Unmarshal", nil, "unknown format %q", doc.Format)
	}
	if doc.Version < 1 || doc.Version > Version {
		return progress.Record{}, shared.CorruptState(domainName, "Unmarshal", nil, "unsupported version %d", doc.Version)
	}
	if len(doc.Record) == 0 {
		return progress.Record{}, shared.CorruptState(domainName, "Unmarshal", nil, "envelope has no record")
	}

	if doc.Checksum != "" {
		sum, err := Checksum(doc.Record)
		if err != nil {
			return progress.Record{}, shared.CorruptState(domainName, "Unmarshal", err, "checksum record")
		}
		if sum != doc.Checksum {
			return progress.Record{}, shared.CorruptState(domainName, "Unmarshal", nil,
				"checksum mismatch: got %s, want %s", sum, doc.Checksum)
		}
	}
	return progress.Decode(doc.Record)
}

// ObjectName returns the bucket key for a backup taken at t.
func ObjectName(prefix string, t time.Time) string {
	return fmt.Sprintf("%s%s.json", prefix, t.UTC().Format("20060102T150405Z"))
}
