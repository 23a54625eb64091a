package keyring

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/wowemulation-dev/cascette-go/internal/cerr"
)

// KeyService resolves a BLTE encrypted chunk's key-name to its 16-byte key,
// satisfying blte.KeyService. It indexes one or more parsed Configs plus
// any hardcoded keys supplied via WithHardcodedKeys, matching known public
// TACT keys that ship with the client rather than a keyring config.
type KeyService struct {
	mu   sync.RWMutex
	keys map[uint64][]byte
}

// Option configures a KeyService at construction time.
type Option func(*KeyService)

// WithHardcodedKeys seeds the service with a fixed key-name -> key map,
// for well-known keys distributed with client binaries rather than
// fetched from a keyring config.
func WithHardcodedKeys(keys map[uint64][]byte) Option {
	return func(s *KeyService) {
		for name, key := range keys {
			s.keys[name] = key
		}
	}
}

// NewKeyService creates a KeyService, optionally pre-seeded with
// hardcoded keys.
func NewKeyService(opts ...Option) *KeyService {
	s := &KeyService{keys: make(map[uint64][]byte)}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// LoadConfig indexes every entry of a parsed keyring Config, overwriting
// any existing entry with the same key-name.
func (s *KeyService) LoadConfig(cfg *Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range cfg.Entries() {
		idBytes, err := hex.DecodeString(e.KeyID)
		if err != nil || len(idBytes) != 8 {
			return fmt.Errorf("keyring: entry %d: bad key-id %q", i, e.KeyID)
		}

		keyBytes, err := hex.DecodeString(e.KeyValue)
		if err != nil || len(keyBytes) != 16 {
			return fmt.Errorf("keyring: entry %d: bad key-value", i)
		}

		name := binary.BigEndian.Uint64(idBytes)
		s.keys[name] = keyBytes
	}

	return nil
}

// Lookup resolves keyName to its 16-byte key. keyName is the integer a
// BLTE encrypted chunk's key-name field decodes to (little-endian on the
// wire); LoadConfig decodes keyring hex strings big-endian, the
// conventional way TACT key-ids are printed, so both sides agree on the
// same numeric key-name space for a given physical key-id.
func (s *KeyService) Lookup(keyName uint64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.keys[keyName]
	if !ok {
		return nil, &cerr.LookupError{Context: "keyring", Key: fmt.Sprintf("%016X", keyName)}
	}

	return key, nil
}
