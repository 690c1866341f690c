package recordstore

import (
	"crypto/rand"
	"encoding/json"
	"errors"

	"github.com/ruteri/pgp-seed-backup/interfaces"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	envelopeVersion = 1
	saltSize        = 16
	dataKeySize     = chacha20poly1305.KeySize
)

var errInvalidEnvelope = errors.New("recordstore envelope is invalid")

// KDFParams are the argon2id parameters used to derive the key wrapping key.
type KDFParams struct {
	Time     uint32
	MemoryKB uint32
	Threads  uint8
}

var DefaultKDFParams = KDFParams{Time: 2, MemoryKB: 64 * 1024, Threads: 1}

// wrappedKey is the password-protected data key as stored in the meta bucket.
type wrappedKey struct {
	Version     uint32 `json:"version"`
	KDF         string `json:"kdf"`
	KDFTime     uint32 `json:"kdf_time"`
	KDFMemoryKB uint32 `json:"kdf_memory_kb"`
	KDFThreads  uint8  `json:"kdf_threads"`
	Salt        []byte `json:"salt"`
	Nonce       []byte `json:"nonce"`
	Ciphertext  []byte `json:"ciphertext"`
}

func wrapDataKey(password string, dataKey []byte, params KDFParams) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	kek := argon2.IDKey([]byte(password), salt, params.Time, params.MemoryKB, params.Threads, chacha20poly1305.KeySize)
	defer zeroBytes(kek)

	aead, err := chacha20poly1305.NewX(kek)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return json.Marshal(&wrappedKey{
		Version:     envelopeVersion,
		KDF:         "argon2id",
		KDFTime:     params.Time,
		KDFMemoryKB: params.MemoryKB,
		KDFThreads:  params.Threads,
		Salt:        salt,
		Nonce:       nonce,
		Ciphertext:  aead.Seal(nil, nonce, dataKey, nil),
	})
}

// unwrapDataKey returns interfaces.ErrBadCredential when the password does not open the envelope.
func unwrapDataKey(password string, raw []byte) ([]byte, error) {
	var env wrappedKey
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errInvalidEnvelope
	}
	if env.Version != envelopeVersion || env.KDF != "argon2id" {
		return nil, errInvalidEnvelope
	}

	kek := argon2.IDKey([]byte(password), env.Salt, env.KDFTime, env.KDFMemoryKB, env.KDFThreads, chacha20poly1305.KeySize)
	defer zeroBytes(kek)

	aead, err := chacha20poly1305.NewX(kek)
	if err != nil {
		return nil, err
	}
	dataKey, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, interfaces.ErrBadCredential
	}
	if len(dataKey) != dataKeySize {
		return nil, errInvalidEnvelope
	}
	return dataKey, nil
}

// seal encrypts a record with the data key; ad binds it to its location.
func seal(dataKey, plaintext, ad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(dataKey)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, ad), nil
}

func open(dataKey, sealed, ad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(dataKey)
	if err != nil {
		return nil, err
	}
	if len(sealed) < chacha20poly1305.NonceSizeX+aead.Overhead() {
		return nil, errInvalidEnvelope
	}
	nonce, ciphertext := sealed[:chacha20poly1305.NonceSizeX], sealed[chacha20poly1305.NonceSizeX:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return nil, errInvalidEnvelope
	}
	return plaintext, nil
}

func recordAD(bucket, key []byte) []byte {
	ad := make([]byte, 0, len(bucket)+1+len(key))
	ad = append(ad, bucket...)
	ad = append(ad, '/')
	return append(ad, key...)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
