package script

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"strings"
)

// Digest computes fixed-width content checksums for script bodies.
type Digest interface {
	// Name identifies the algorithm in configuration.
	Name() string

	// Sum returns the digest of body.
	Sum(body []byte) []byte
}

// SHA384 is the default digest.
var SHA384 Digest = sha384Digest{}

// SHA256 is an alternative digest for trackers created with it.
var SHA256 Digest = sha256Digest{}

type sha384Digest struct{}

func (sha384Digest) Name() string { return "sha384" }

func (sha384Digest) Sum(body []byte) []byte {
	sum := sha512.Sum384(body)
	return sum[:]
}

type sha256Digest struct{}

func (sha256Digest) Name() string { return "sha256" }

func (sha256Digest) Sum(body []byte) []byte {
	sum := sha256.Sum256(body)
	return sum[:]
}

// DigestByName looks up a digest by its configuration name.
// An empty name selects SHA384.
func DigestByName(name string) (Digest, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sha384":
		return SHA384, nil
	case "sha256":
		return SHA256, nil
	default:
		return nil, fmt.Errorf("unknown checksum algorithm %q: must be sha384 or sha256", name)
	}
}
