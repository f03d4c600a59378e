// Package idgen produces user identifiers.
//
// Identifiers are random, URL-safe, alphanumeric and at most MaxLength
// characters long. They never encode a sequence number, so they do not leak
// how many users exist.
package idgen

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// Supported identifier formats.
const (
	FormatUUID  = "uuid"  // 32 lower-case hex chars, 122 random bits
	FormatKSUID = "ksuid" // 27 base62 chars, timestamp + 128 random bits
)

// MaxLength is the width of the id column.
const MaxLength = 32

// Generator generates user identifiers. It is safe for concurrent use.
type Generator struct {
	format string
}

// New returns a Generator for the given format. It draws one identifier up
// front so a broken entropy source fails at startup instead of per request.
func New(format string) (*Generator, error) {
	switch format {
	case FormatUUID:
		if _, err := uuid.NewRandom(); err != nil {
			return nil, fmt.Errorf("entropy source unavailable: %w", err)
		}
	case FormatKSUID:
		if _, err := ksuid.NewRandom(); err != nil {
			return nil, fmt.Errorf("entropy source unavailable: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported id format %q", format)
	}

	return &Generator{format: format}, nil
}

// Format returns the configured identifier format.
func (g *Generator) Format() string {
	return g.format
}

// Generate returns a new identifier. It panics if the entropy source fails,
// which New has already ruled out for a healthy process.
func (g *Generator) Generate() string {
	if g.format == FormatKSUID {
		return ksuid.New().String()
	}

	id := uuid.New()
	return hex.EncodeToString(id[:])
}
