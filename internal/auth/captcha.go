package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

const (
	// CaptchaTTL is how long an issued captcha stays valid
	CaptchaTTL = 5 * time.Minute

	captchaAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	captchaMinLen   = 4
	captchaMaxLen   = 6
)

// ErrCaptchaNotFound is returned by a CaptchaStore for unknown or expired ids
var ErrCaptchaNotFound = errors.New("captcha not found")

// Captcha is an issued challenge. Rendering the word is left to the client.
type Captcha struct {
	ID   string `json:"id"`
	Word string `json:"word"`
}

// CaptchaStore keeps issued words until they are taken or expire
type CaptchaStore interface {
	Put(ctx context.Context, id, word string, ttl time.Duration) error

	// Take returns the word and forgets it, so each captcha is single use.
	Take(ctx context.Context, id string) (string, error)
}

// CaptchaService issues and verifies captchas
type CaptchaService struct {
	store  CaptchaStore
	ttl    time.Duration
	bypass string
}

// NewCaptchaService creates a service. A non-empty bypass word is accepted
// for any captcha id that is still valid.
func NewCaptchaService(store CaptchaStore, bypass string) *CaptchaService {
	return &CaptchaService{store: store, ttl: CaptchaTTL, bypass: strings.ToUpper(strings.TrimSpace(bypass))}
}

// Issue creates a new captcha
func (s *CaptchaService) Issue(ctx context.Context) (*Captcha, error) {
	word, err := randomWord()
	if err != nil {
		return nil, fmt.Errorf("failed to generate captcha: %w", err)
	}

	c := &Captcha{ID: uuid.NewString(), Word: word}
	if err := s.store.Put(ctx, c.ID, c.Word, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to store captcha: %w", err)
	}
	return c, nil
}

// Verify consumes the captcha and reports whether input matched it,
// ignoring case and surrounding space.
func (s *CaptchaService) Verify(ctx context.Context, id, input string) (bool, error) {
	if id == "" {
		return false, nil
	}

	word, err := s.store.Take(ctx, id)
	if err != nil {
		if errors.Is(err, ErrCaptchaNotFound) {
			return false, nil
		}
		return false, err
	}

	guess := strings.ToUpper(strings.TrimSpace(input))
	if s.bypass != "" && guess == s.bypass {
		return true, nil
	}
	return guess == strings.ToUpper(word), nil
}

func randomWord() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(captchaMaxLen-captchaMinLen+1))
	if err != nil {
		return "", err
	}
	length := captchaMinLen + int(n.Int64())

	var b strings.Builder
	for i := 0; i < length; i++ {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(captchaAlphabet))))
		if err != nil {
			return "", err
		}
		b.WriteByte(captchaAlphabet[idx.Int64()])
	}
	return b.String(), nil
}

type captchaEntry struct {
	word    string
	expires time.Time
}

// MemoryCaptchaStore keeps captchas in process memory
type MemoryCaptchaStore struct {
	mu      sync.Mutex
	entries map[string]captchaEntry
	now     func() time.Time
}

// NewMemoryCaptchaStore creates an empty in-memory store
func NewMemoryCaptchaStore() *MemoryCaptchaStore {
	return &MemoryCaptchaStore{entries: make(map[string]captchaEntry), now: time.Now}
}

func (s *MemoryCaptchaStore) Put(ctx context.Context, id, word string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, k)
		}
	}
	s.entries[id] = captchaEntry{word: word, expires: now.Add(ttl)}
	return nil
}

func (s *MemoryCaptchaStore) Take(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return "", ErrCaptchaNotFound
	}
	delete(s.entries, id)

	if s.now().After(e.expires) {
		return "", ErrCaptchaNotFound
	}
	return e.word, nil
}

// ValkeyCaptchaStore keeps captchas in Valkey with a TTL so they are shared across instances
type ValkeyCaptchaStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyCaptchaStore creates a store using an existing client
func NewValkeyCaptchaStore(client valkey.Client, prefix string) *ValkeyCaptchaStore {
	return &ValkeyCaptchaStore{client: client, prefix: prefix + "captcha:"}
}

func (s *ValkeyCaptchaStore) Put(ctx context.Context, id, word string, ttl time.Duration) error {
	cmd := s.client.B().Set().Key(s.prefix + id).Value(word).ExSeconds(int64(ttl.Seconds())).Build()
	return s.client.Do(ctx, cmd).Error()
}

func (s *ValkeyCaptchaStore) Take(ctx context.Context, id string) (string, error) {
	cmd := s.client.B().Getdel().Key(s.prefix + id).Build()
	word, err := s.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return "", ErrCaptchaNotFound
		}
		return "", fmt.Errorf("failed to read captcha: %w", err)
	}
	return word, nil
}
