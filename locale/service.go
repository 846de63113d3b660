// Package locale tracks the active UI language and renders localized messages.
package locale

import (
	"context"
	"sync"

	"github.com/christlandtech/storefront-client/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
)

// StorageKey is the slot holding the persisted language.
const StorageKey = "i18n-lang"

// Supported lists the UI languages, default first.
var Supported = []language.Tag{language.French, language.English}

var matcher = language.NewMatcher(Supported)

// Normalize maps any language tag to a supported base language code,
// e.g. "en-GB" to "en". Unknown or empty input yields the default "fr".
func Normalize(lang string) string {
	if lang == "" {
		return Supported[0].String()
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return Supported[0].String()
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return Supported[0].String()
	}
	return Supported[idx].String()
}

// Service holds the current language. Changes are persisted and broadcast to
// subscribers, which the query layer uses to drop its cache.
type Service struct {
	kv     session.KeyValueStore
	logger zerolog.Logger

	mu      sync.RWMutex
	current string
	subs    map[int]func(lang string)
	nextSub int
}

type Option func(*Service)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService restores the language from kv, falling back to defaultLang.
// kv may be nil, in which case the language lives in memory only.
func NewService(ctx context.Context, kv session.KeyValueStore, defaultLang string, opts ...Option) *Service {
	s := &Service{
		kv:      kv,
		logger:  log.Logger,
		current: Normalize(defaultLang),
		subs:    make(map[int]func(string)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if kv != nil {
		stored, ok, err := kv.Get(ctx, StorageKey)
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Msg("locale: could not read stored language")
		case ok && stored != "":
			s.current = Normalize(stored)
		}
	}
	return s
}

// Current returns the active language code.
func (s *Service) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set changes the active language. Subscribers are notified only when the
// normalized language actually changes.
func (s *Service) Set(ctx context.Context, lang string) error {
	lang = Normalize(lang)

	s.mu.Lock()
	if lang == s.current {
		s.mu.Unlock()
		return nil
	}
	s.current = lang
	subs := make([]func(string), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	var err error
	if s.kv != nil {
		err = s.kv.Set(ctx, StorageKey, lang)
		if err != nil {
			s.logger.Error().Err(err).Str("lang", lang).Msg("locale: could not persist language")
		}
	}
	s.logger.Debug().Str("lang", lang).Msg("locale: language changed")

	for _, fn := range subs {
		fn(lang)
	}
	return err
}

// Subscribe registers fn for language changes and returns its unsubscribe func.
func (s *Service) Subscribe(fn func(lang string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}
