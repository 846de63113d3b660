package locale

import (
	"embed"
	"fmt"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

//go:embed messages/*.yaml
var messageFS embed.FS

// Message IDs defined in messages/active.*.yaml.
const (
	MsgHTTPStatus      = "HTTPStatus"
	MsgNonJSONResponse = "NonJSONResponse"
	MsgNetworkError    = "NetworkError"
	MsgRequestTimeout  = "RequestTimeout"
	MsgNotLoggedIn     = "NotLoggedIn"
	MsgLoggedInAs      = "LoggedInAs"
	MsgLoggedOut       = "LoggedOut"
	MsgLanguageChanged = "LanguageChanged"
)

// Localizer renders user-visible strings in a supported language.
type Localizer struct {
	bundle *i18n.Bundle

	mu         sync.Mutex
	localizers map[string]*i18n.Localizer
}

// NewLocalizer loads the embedded message catalogue.
func NewLocalizer() (*Localizer, error) {
	bundle := i18n.NewBundle(Supported[0])
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)
	for _, tag := range Supported {
		path := fmt.Sprintf("messages/active.%s.yaml", tag)
		if _, err := bundle.LoadMessageFileFS(messageFS, path); err != nil {
			return nil, fmt.Errorf("locale.NewLocalizer %s: %w", path, err)
		}
	}
	return &Localizer{
		bundle:     bundle,
		localizers: make(map[string]*i18n.Localizer),
	}, nil
}

// DefaultLocalizer is built from the embedded catalogue at init.
var DefaultLocalizer = mustLocalizer()

func mustLocalizer() *Localizer {
	l, err := NewLocalizer()
	if err != nil {
		panic(err)
	}
	return l
}

// Message renders id in lang with data as template values. Unknown ids are
// returned unchanged so a missing translation never hides an error.
func (l *Localizer) Message(lang, id string, data map[string]any) string {
	msg, err := l.localizer(lang).Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil {
		log.Warn().Err(err).Str("lang", lang).Str("id", id).Msg("locale: message not found")
		return id
	}
	return msg
}

func (l *Localizer) localizer(lang string) *i18n.Localizer {
	lang = Normalize(lang)
	l.mu.Lock()
	defer l.mu.Unlock()
	loc, ok := l.localizers[lang]
	if !ok {
		loc = i18n.NewLocalizer(l.bundle, lang)
		l.localizers[lang] = loc
	}
	return loc
}
