package debugpattern

import (
	"testing"
	"time"

	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/coherency"
	"github.com/Crackedcoder5TH/remembrance-oracle-toolkit-sub001/internal/store"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStripsLocationsAddressesAndTimestamps(t *testing.T) {
	raw := "panic at handler.go:42:7 addr=0x7ffeef0a1 at " + time.Now().UTC().Format(time.RFC3339) + "  nil pointer"
	got := Normalize(raw)
	require.NotContains(t, got, "handler.go")
	require.NotContains(t, got, "0x7ffeef0a1")
	require.Contains(t, got, "<loc>")
	require.Contains(t, got, "<addr>")
	require.Contains(t, got, "<ts>")
}

func TestFingerprintIsStableAcrossVaryingLocations(t *testing.T) {
	a := Fingerprint("NullPointerException at foo.go:10: nil deref", store.CategoryRuntime)
	b := Fingerprint("NullPointerException at bar.go:99: nil deref", store.CategoryRuntime)
	require.Equal(t, a, b)
}

func TestFingerprintDiffersByCategory(t *testing.T) {
	a := Fingerprint("some error", store.CategorySyntax)
	b := Fingerprint("some error", store.CategoryLogic)
	require.NotEqual(t, a, b)
}

func TestCaptureSearchFeedbackRoundTrip(t *testing.T) {
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	dp := New(s)

	captured, err := dp.Capture("TypeError: x is not a function at app.js:5", "", "coerce to function", coherency.LanguageJavaScript)
	require.NoError(t, err)
	require.Equal(t, store.CategoryType, captured.Category)

	found, ok, err := dp.Search("TypeError: x is not a function at other.js:99")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, captured.Fingerprint, found.Fingerprint)

	updated, err := dp.Feedback(found.Fingerprint, true)
	require.NoError(t, err)
	require.Equal(t, 1, updated.TimesResolved)
}

func TestClassifyCategoryMatchesKnownErrorShapes(t *testing.T) {
	require.Equal(t, store.CategorySyntax, ClassifyCategory("SyntaxError: unexpected token }"))
	require.Equal(t, store.CategoryType, ClassifyCategory("TypeError: cannot use string as int"))
	require.Equal(t, store.CategoryNetwork, ClassifyCategory("dial tcp 127.0.0.1:80: connection refused"))
	require.Equal(t, store.CategoryRuntime, ClassifyCategory("something unexpected happened"))
}

func TestSearchAllReturnsExactMatchFirstThenRelated(t *testing.T) {
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	dp := New(s)

	exact, err := dp.Capture("TypeError: x is not a function at app.js:5", "", "coerce to function", coherency.LanguageJavaScript)
	require.NoError(t, err)
	_, err = dp.Capture("TypeError: y is not a number at other.js:9", "", "coerce to number", coherency.LanguageJavaScript)
	require.NoError(t, err)

	results, err := dp.SearchAll("TypeError: x is not a function at second.js:1", coherency.LanguageJavaScript)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, exact.Fingerprint, results[0].Fingerprint)
	require.Len(t, results, 2)
}
