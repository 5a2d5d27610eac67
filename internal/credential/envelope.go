// Package credential implements the pluggable credential store: a keyed
// get/set abstraction over OS keychains, a password-encrypted file, or a
// null backend, guarded by at-rest Argon2id+AES-256-GCM encryption and an
// auto-lock timer.
package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// KDF parameters for the master-password store, fixed per spec.
const (
	kdfMemoryCostKiB = 64 * 1024
	kdfTimeCost      = 3
	kdfParallelism   = 1
	kdfSaltLen       = 32
	kdfKeyLen        = 32

	gcmNonceLen = 12

	// EnvelopeVersion is both the on-disk version field and the single-byte
	// AAD bound to every seal/open call.
	EnvelopeVersion = 1
)

// ErrWrongPasswordOrCorrupted is returned uniformly for any decrypt failure
// so a wrong password and corrupted data look identical to the caller.
var ErrWrongPasswordOrCorrupted = fmt.Errorf("wrong password or corrupted data")

// kdfParams is the envelope's on-disk KDF descriptor. Canonical field names
// are camelCase; UnmarshalJSON also accepts snake_case aliases for
// backward compatibility.
type kdfParams struct {
	Algorithm   string `json:"algorithm"`
	MemoryCost  uint32 `json:"memoryCost"`
	TimeCost    uint32 `json:"timeCost"`
	Parallelism uint8  `json:"parallelism"`
	Salt        string `json:"salt"`
}

type kdfParamsAliases struct {
	MemoryCost uint32 `json:"memory_cost"`
	TimeCost   uint32 `json:"time_cost"`
}

func (k *kdfParams) UnmarshalJSON(data []byte) error {
	type plain kdfParams
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*k = kdfParams(p)

	var aliases kdfParamsAliases
	if err := json.Unmarshal(data, &aliases); err != nil {
		return err
	}
	if k.MemoryCost == 0 && aliases.MemoryCost != 0 {
		k.MemoryCost = aliases.MemoryCost
	}
	if k.TimeCost == 0 && aliases.TimeCost != 0 {
		k.TimeCost = aliases.TimeCost
	}
	return nil
}

// Envelope is the JSON structure persisted to the master-password file.
type Envelope struct {
	Version int       `json:"version"`
	KDF     kdfParams `json:"kdf"`
	Nonce   string    `json:"nonce"`
	Data    string    `json:"data"`
}

// Seal derives a key from password and the envelope's own fresh salt, then
// AES-256-GCM-encrypts plaintext with a fresh nonce. Each call produces a
// new salt and nonce.
func Seal(password string, plaintext []byte) (*Envelope, error) {
	salt := make([]byte, kdfSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("credential: generate salt: %w", err)
	}
	return sealWithSalt(password, salt, plaintext)
}

func sealWithSalt(password string, salt, plaintext []byte) (*Envelope, error) {
	key := deriveKey(password, salt, kdfMemoryCostKiB, kdfTimeCost, kdfParallelism)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcmNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("credential: generate nonce: %w", err)
	}

	aad := []byte{EnvelopeVersion}
	ciphertext := gcm.Seal(nil, nonce, plaintext, aad)

	return &Envelope{
		Version: EnvelopeVersion,
		KDF: kdfParams{
			Algorithm:   "argon2id",
			MemoryCost:  kdfMemoryCostKiB,
			TimeCost:    kdfTimeCost,
			Parallelism: kdfParallelism,
			Salt:        base64.StdEncoding.EncodeToString(salt),
		},
		Nonce: base64.StdEncoding.EncodeToString(nonce),
		Data:  base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// Open derives the key from password and the envelope's stored KDF
// parameters, then decrypts. An unknown envelope version is reported as
// its own error; any other failure — wrong password, tampered
// ciphertext, malformed base64 — surfaces as ErrWrongPasswordOrCorrupted.
func Open(env *Envelope, password string) ([]byte, error) {
	if env.Version != EnvelopeVersion {
		return nil, fmt.Errorf("credential: unknown envelope version %d", env.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(env.KDF.Salt)
	if err != nil {
		return nil, ErrWrongPasswordOrCorrupted
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, ErrWrongPasswordOrCorrupted
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return nil, ErrWrongPasswordOrCorrupted
	}

	key := deriveKey(password, salt, env.KDF.MemoryCost, env.KDF.TimeCost, env.KDF.Parallelism)
	gcm, err := newGCM(key)
	if err != nil {
		return nil, ErrWrongPasswordOrCorrupted
	}

	aad := []byte{byte(env.Version)}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrWrongPasswordOrCorrupted
	}
	return plaintext, nil
}

// Reseal re-encrypts plaintext under newPassword with a fresh salt and
// nonce, for master-password change.
func Reseal(newPassword string, plaintext []byte) (*Envelope, error) {
	return Seal(newPassword, plaintext)
}

func deriveKey(password string, salt []byte, memoryCostKiB, timeCost uint32, parallelism uint8) []byte {
	return argon2.IDKey([]byte(password), salt, timeCost, memoryCostKiB, parallelism, kdfKeyLen)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("credential: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("credential: new gcm: %w", err)
	}
	return gcm, nil
}
