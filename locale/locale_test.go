package locale_test

import (
	"context"
	"testing"

	"github.com/christlandtech/storefront-client/locale"
	"github.com/christlandtech/storefront-client/session/kvstore"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"":       "fr",
		"fr":     "fr",
		"FR":     "fr",
		"fr-CA":  "fr",
		"en":     "en",
		"en-GB":  "en",
		"de":     "fr",
		"!!bad!": "fr",
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			require.Equal(t, want, locale.Normalize(in))
		})
	}
}

func TestService(t *testing.T) {
	ctx := context.Background()

	t.Run("restores stored language", func(t *testing.T) {
		kv := kvstore.NewMemoryStore()
		require.NoError(t, kv.Set(ctx, locale.StorageKey, "en"))

		svc := locale.NewService(ctx, kv, "fr")
		require.Equal(t, "en", svc.Current())
	})

	t.Run("defaults when nothing stored", func(t *testing.T) {
		svc := locale.NewService(ctx, kvstore.NewMemoryStore(), "")
		require.Equal(t, "fr", svc.Current())
	})

	t.Run("set persists and notifies on change only", func(t *testing.T) {
		kv := kvstore.NewMemoryStore()
		svc := locale.NewService(ctx, kv, "fr")

		var got []string
		unsubscribe := svc.Subscribe(func(lang string) { got = append(got, lang) })

		require.NoError(t, svc.Set(ctx, "en-US"))
		require.NoError(t, svc.Set(ctx, "en"))
		require.Equal(t, []string{"en"}, got)

		stored, ok, err := kv.Get(ctx, locale.StorageKey)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "en", stored)

		unsubscribe()
		require.NoError(t, svc.Set(ctx, "fr"))
		require.Equal(t, []string{"en"}, got)
		require.Equal(t, "fr", svc.Current())
	})

	t.Run("memory only", func(t *testing.T) {
		svc := locale.NewService(ctx, nil, "en")
		require.NoError(t, svc.Set(ctx, "fr"))
		require.Equal(t, "fr", svc.Current())
	})
}

func TestLocalizer(t *testing.T) {
	l, err := locale.NewLocalizer()
	require.NoError(t, err)

	data := map[string]any{"Status": 502, "Snippet": "<html>Bad gateway</html>"}
	require.Equal(t, "HTTP 502 — Réponse non-JSON: <html>Bad gateway</html>",
		l.Message("fr", locale.MsgNonJSONResponse, data))
	require.Equal(t, "HTTP 502 — Non-JSON response: <html>Bad gateway</html>",
		l.Message("en", locale.MsgNonJSONResponse, data))
	require.Equal(t, "HTTP 404", l.Message("en", locale.MsgHTTPStatus, map[string]any{"Status": 404}))

	// unsupported languages fall back to French
	require.Equal(t, "Non connecté.", l.Message("de", locale.MsgNotLoggedIn, nil))

	require.Equal(t, "NoSuchMessage", l.Message("fr", "NoSuchMessage", nil))
}
