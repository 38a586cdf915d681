package obfs

import (
	"sync"

	"github.com/metacubex/chacha/chacha"
	"lukechampine.com/blake3"
)

const (
	SecretSize = 32

	// keystreamRounds selects ChaCha8.
	keystreamRounds = 8
)

var (
	uploadLabel   = []byte("uploadtcp-----------------------")
	downloadLabel = []byte("downloadtcp---------------------")
)

// deriveSeed computes the BLAKE3 keyed hash of secret under a 32-byte label.
func deriveSeed(label []byte, secret [SecretSize]byte) (seed [chacha.KeySize]byte) {
	h := blake3.New(chacha.KeySize, label)
	_, _ = h.Write(secret[:])
	h.Sum(seed[:0])
	return
}

// keystream is one direction's cipher state. The mutex is held by callers
// for as long as the advance must stay ordered with other side effects.
type keystream struct {
	sync.Mutex
	cipher *chacha.Cipher
}

func newKeystream(seed [chacha.KeySize]byte) *keystream {
	var nonce [chacha.NonceSize]byte
	c, err := chacha.NewCipher(nonce[:], seed[:], keystreamRounds)
	if err != nil {
		panic(err) // key and nonce sizes are fixed
	}
	return &keystream{cipher: c}
}

// apply XORs the next len(p) keystream bytes into p. Caller holds the lock.
func (k *keystream) apply(p []byte) {
	k.cipher.XORKeyStream(p, p)
}

// directions returns the (send, recv) keystreams for the given role.
// The client sends on the upload stream; the server receives on it.
func directions(secret [SecretSize]byte, isServer bool) (send, recv *keystream) {
	up := newKeystream(deriveSeed(uploadLabel, secret))
	dn := newKeystream(deriveSeed(downloadLabel, secret))
	if isServer {
		return dn, up
	}
	return up, dn
}
