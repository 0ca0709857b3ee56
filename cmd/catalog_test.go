package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/portfolio-advisor/internal/model"
)

func TestImportCatalog_ReplacesAndSkipsInvalid(t *testing.T) {
	dir := useTestConfig(t)
	ctx := context.Background()
	st, err := initStore(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	n, err := importCatalog(ctx, st, writeFixture(t, dir, "catalog.json", catalogFixture))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	smaller := `[{"id": "s9", "name": "Only One"}]`
	n, err = importCatalog(ctx, st, writeFixture(t, dir, "small.yaml", strings.ReplaceAll(smaller, `"`, "")))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	offerings, err := st.ListOfferings(ctx)
	require.NoError(t, err)
	require.Len(t, offerings, 1)
	assert.Equal(t, "s9", offerings[0].ID)
}

func TestImportCatalog_Errors(t *testing.T) {
	dir := useTestConfig(t)
	ctx := context.Background()
	st, err := initStore(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	_, err = importCatalog(ctx, st, writeFixture(t, dir, "catalog.txt", catalogFixture))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog import")

	_, err = importCatalog(ctx, st, writeFixture(t, dir, "dup.json",
		`[{"id":"s1","name":"A"},{"id":"s1","name":"B"}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate offering id")
}

func TestValidOfferings_FlagsUnmatchable(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	got := validOfferings([]model.Offering{
		{ID: "s1", Name: "Full", KeyFeatures: []string{"a"}, Benefits: []string{"b"}},
		{ID: "s2", Name: "No Benefits", KeyFeatures: []string{"a"}},
		{Name: "No ID"},
	})

	require.Len(t, got, 2)
	assert.Equal(t, "s2", got[1].ID)

	flagged := logs.FilterMessage("offering can never produce benefit evidence").All()
	require.Len(t, flagged, 1)
	assert.Equal(t, "s2", flagged[0].ContextMap()["id"])
	assert.Equal(t, 1, logs.FilterMessage("skipping invalid offering").Len())
}

func TestImportInsights_ReplacesPerClient(t *testing.T) {
	dir := useTestConfig(t)
	ctx := context.Background()
	st, err := initStore(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	n, err := importInsights(ctx, st, writeFixture(t, dir, "insights.json", insightsFixture))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	update := `{"clientName": "Acme Manufacturing", "sentiment": 40, "signals": [{"name": "Hiring freeze", "confidence": 55, "kind": "budget"}]}`
	n, err = importInsights(ctx, st, writeFixture(t, dir, "acme.json", update))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	acme, err := st.GetInsightSet(ctx, "Acme Manufacturing")
	require.NoError(t, err)
	assert.Equal(t, 40, acme.Sentiment)
	require.Len(t, acme.Signals, 1)
	assert.Equal(t, "Hiring freeze", acme.Signals[0].Name)

	zenith, err := st.GetInsightSet(ctx, "Zenith Health")
	require.NoError(t, err)
	assert.Equal(t, 31, zenith.Sentiment)
}

func TestFormatOfferings(t *testing.T) {
	var buf bytes.Buffer
	formatOfferings(&buf, []model.Offering{
		{ID: "s1", Name: "Application Modernization", Practice: "Apps", KeyFeatures: []string{"a", "b"}, Benefits: []string{"c"}},
		{ID: "s2", Name: strings.Repeat("x", 60)},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "ID")
	assert.Contains(t, lines[0], "BENEFITS")
	assert.Contains(t, lines[1], "Application Modernization")
	assert.Contains(t, lines[1], "Apps")
	assert.Contains(t, lines[2], strings.Repeat("x", 37)+"...")
}

func TestFormatInsightSets(t *testing.T) {
	captured := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	var buf bytes.Buffer
	formatInsightSets(&buf, []model.ClientInsightSet{
		{ClientName: "Acme Manufacturing", Sentiment: 72, Signals: make([]model.Signal, 3), CapturedAt: &captured},
		{ClientName: "Zenith Health", Sentiment: 31},
	})

	out := buf.String()
	assert.Contains(t, out, "CLIENT")
	assert.Contains(t, out, "2026-05-04T09:30:00Z")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(lines[2]), "-"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ééé", truncate("ééé", 3))
}
