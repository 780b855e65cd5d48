package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the service name used in the OS credential store.
const DefaultKeyringService = "weather-favorites"

// DefaultKeyringChunkSize keeps every entry under the Windows credential blob
// limit (2560 bytes) and the macOS security command limit (4096 bytes after
// base64).
const DefaultKeyringChunkSize = 2048

const chunkHeaderPrefix = "chunked:"

// KeyringStore is a BlobStore backed by the OS credential store (macOS
// Keychain, Secret Service, Windows Credential Manager).
//
// Blobs larger than the chunk size are split across numbered entries
// ("<key>#0", "<key>#1", ...) and the entry under key holds "chunked:<n>".
type KeyringStore struct {
	service   string
	chunkSize int
}

// KeyringOption configures a KeyringStore.
type KeyringOption func(*KeyringStore)

// WithChunkSize overrides the maximum bytes stored per keyring entry.
func WithChunkSize(n int) KeyringOption {
	return func(s *KeyringStore) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// NewKeyringStore creates a KeyringStore under service.
func NewKeyringStore(service string, opts ...KeyringOption) *KeyringStore {
	if service == "" {
		service = DefaultKeyringService
	}
	s := &KeyringStore{service: service, chunkSize: DefaultKeyringChunkSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get retrieves the blob stored under key.
func (s *KeyringStore) Get(_ context.Context, key string) (string, bool, error) {
	head, ok, err := s.get(key)
	if err != nil || !ok {
		return "", false, err
	}

	n, chunked, err := parseChunkHeader(head)
	if err != nil {
		return "", false, err
	}
	if !chunked {
		return head, true, nil
	}

	var b strings.Builder
	for i := 0; i < n; i++ {
		part, ok, err := s.get(chunkKey(key, i))
		if err != nil {
			return "", false, err
		}
		if !ok {
			return "", false, fmt.Errorf("keyring: %s: missing chunk %d of %d", key, i, n)
		}
		b.WriteString(part)
	}
	return b.String(), true, nil
}

// Set stores the blob under key. Parts are written before the header, and
// parts left over from a longer previous blob are removed afterwards.
func (s *KeyringStore) Set(_ context.Context, key, value string) error {
	prev := 0
	if head, ok, err := s.get(key); err == nil && ok {
		if n, chunked, err := parseChunkHeader(head); err == nil && chunked {
			prev = n
		}
	}

	var next int
	if len(value) <= s.chunkSize && !strings.HasPrefix(value, chunkHeaderPrefix) {
		if err := keyring.Set(s.service, key, value); err != nil {
			return err
		}
	} else {
		parts := splitChunks(value, s.chunkSize)
		for i, part := range parts {
			if err := keyring.Set(s.service, chunkKey(key, i), part); err != nil {
				return err
			}
		}
		next = len(parts)
		if err := keyring.Set(s.service, key, chunkHeaderPrefix+strconv.Itoa(next)); err != nil {
			return err
		}
	}

	for i := next; i < prev; i++ {
		if err := keyring.Delete(s.service, chunkKey(key, i)); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return err
		}
	}
	return nil
}

// Close is a no-op.
func (s *KeyringStore) Close() error {
	return nil
}

func (s *KeyringStore) get(key string) (string, bool, error) {
	v, err := keyring.Get(s.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func chunkKey(key string, i int) string {
	return key + "#" + strconv.Itoa(i)
}

func parseChunkHeader(v string) (int, bool, error) {
	rest, ok := strings.CutPrefix(v, chunkHeaderPrefix)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false, fmt.Errorf("keyring: invalid chunk header %q", v)
	}
	return n, true, nil
}

// splitChunks cuts v into parts of at most size bytes without splitting a
// UTF-8 sequence.
func splitChunks(v string, size int) []string {
	parts := make([]string, 0, len(v)/size+1)
	for len(v) > size {
		cut := size
		for cut > 0 && !utf8.RuneStart(v[cut]) {
			cut--
		}
		if cut == 0 {
			cut = size
		}
		parts = append(parts, v[:cut])
		v = v[cut:]
	}
	return append(parts, v)
}
