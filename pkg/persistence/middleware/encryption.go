package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/ports"
)

// sealedKey holds the ciphertext inside the answers of a stored snapshot.
const sealedKey = "__sealed__"

// ErrNotSealed is returned when a stored snapshot carries plain answers.
var ErrNotSealed = errors.New("session snapshot is not encrypted")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey seals new snapshots. Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot open a
	// snapshot, so keys can be rotated without dropping live sessions.
	FallbackKeys [][]byte
}

// ParseKeys decodes base64 keys; the first one becomes the active key.
func ParseKeys(encoded ...string) (EncryptionConfig, error) {
	var cfg EncryptionConfig
	for i, s := range encoded {
		key, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return EncryptionConfig{}, fmt.Errorf("key %d: %w", i+1, err)
		}
		if len(key) != 32 {
			return EncryptionConfig{}, fmt.Errorf("key %d: must be 32 bytes, got %d", i+1, len(key))
		}
		if i == 0 {
			cfg.ActiveKey = key
		} else {
			cfg.FallbackKeys = append(cfg.FallbackKeys, key)
		}
	}
	if cfg.ActiveKey == nil {
		return EncryptionConfig{}, errors.New("no encryption key")
	}
	return cfg, nil
}

type encryptionMiddleware struct {
	next   ports.SessionStore
	config EncryptionConfig
}

// NewEncryptionMiddleware seals the answers of every snapshot with
// AES-256-GCM. Navigation fields (state, current question, history) stay
// readable for monitoring.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, fmt.Errorf("active key must be 32 bytes (AES-256), got %d", len(config.ActiveKey))
	}
	for i, k := range config.FallbackKeys {
		if len(k) != 32 {
			return nil, fmt.Errorf("fallback key %d must be 32 bytes, got %d", i+1, len(k))
		}
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &encryptionMiddleware{next: next, config: config}
	}, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, sessionID string, snap *domain.WizardSnapshot) error {
	plain, err := json.Marshal(snap.Answers)
	if err != nil {
		return fmt.Errorf("failed to marshal answers: %w", err)
	}
	sealed, err := seal(plain, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt answers: %w", err)
	}

	envelope := *snap
	envelope.Answers = domain.Answers{sealedKey: base64.StdEncoding.EncodeToString(sealed)}
	return m.next.Save(ctx, sessionID, &envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, sessionID string) (*domain.WizardSnapshot, error) {
	envelope, err := m.next.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	encoded, ok := envelope.Answers[sealedKey].(string)
	if !ok || len(envelope.Answers) != 1 {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotSealed)
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plain, err := openWithRotation(sealed, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	var answers domain.Answers
	if err := json.Unmarshal(plain, &answers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted answers: %w", err)
	}

	snap := *envelope
	snap.Answers = answers
	return &snap, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func seal(plain, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func openWithRotation(sealed, active []byte, fallbacks [][]byte) ([]byte, error) {
	for _, key := range append([][]byte{active}, fallbacks...) {
		if plain, err := open(sealed, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func open(sealed, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}
