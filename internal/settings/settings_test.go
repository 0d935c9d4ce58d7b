package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

// TestStaticResolverDefaults: the zero value resolves to Default.
func TestStaticResolverDefaults(t *testing.T) {
	t.Parallel()

	resolved, err := Static{}.Resolve(context.Background(), "user@example.com")
	require.NoError(t, err)
	require.Equal(t, Default, resolved)
	require.True(t, resolved.AlarmEnabled)
	require.Equal(t, language.English, resolved.Locale)
}

// TestStaticResolverFixedSettings returns the injected settings.
func TestStaticResolverFixedSettings(t *testing.T) {
	t.Parallel()

	fixed := Resolved{Locale: language.French, AlarmEnabled: false}

	resolved, err := Static{Settings: &fixed}.Resolve(context.Background(), "user@example.com")
	require.NoError(t, err)
	require.Equal(t, fixed, resolved)
}

// TestCheckDomain covers the managed-domain gate of the Mongo resolver.
func TestCheckDomain(t *testing.T) {
	t.Parallel()

	r := &MongoResolver{domains: map[string]struct{}{"example.com": {}}}

	require.NoError(t, r.checkDomain("user@example.com"))
	require.ErrorIs(t, r.checkDomain("user@other.org"), ErrUnknownDomain)
	require.ErrorIs(t, r.checkDomain("not-an-address"), ErrUnknownDomain)

	open := &MongoResolver{}
	require.NoError(t, open.checkDomain("user@anything.test"))
}
