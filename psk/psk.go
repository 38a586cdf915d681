// Package psk turns configured passwords or hex keys into the 32-byte shared
// secret expected by obfs.
package psk

import (
	"encoding/hex"

	"github.com/pkg/errors"
	"lukechampine.com/blake3"

	"github.com/wwqgtxx/obfstunnel/obfs"
)

const passwordContext = "obfstunnel 2024 pre-shared secret"

// FromPassword derives a secret from a human-chosen password.
func FromPassword(password string) (secret [obfs.SecretSize]byte) {
	blake3.DeriveKey(secret[:], passwordContext, []byte(password))
	return
}

// FromHex decodes a secret written as 64 hex digits.
func FromHex(s string) (secret [obfs.SecretSize]byte, err error) {
	if len(s) != hex.EncodedLen(obfs.SecretSize) {
		err = errors.Errorf("psk: hex secret must be %d characters, got %d", hex.EncodedLen(obfs.SecretSize), len(s))
		return
	}
	if _, err = hex.Decode(secret[:], []byte(s)); err != nil {
		err = errors.Wrap(err, "psk: decode hex secret")
	}
	return
}
