package app_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docsearch/internal/app"
	"github.com/custodia-labs/docsearch/internal/config"
	"github.com/custodia-labs/docsearch/internal/model"
	"github.com/custodia-labs/docsearch/internal/search"
)

// newTestApp wires a full engine against in-memory stores: the static
// deterministic embedder, in-memory SQLite, and an embedded miniredis.
func newTestApp(t *testing.T) *app.App {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Embeddings.Provider = "static"
	cfg.Redis.Addr = ""

	a, err := app.New(context.Background(), cfg, nil, app.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestIngestThenSearchRoundTrip(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	artifact, err := a.Ingest.IngestSnippet(ctx,
		"The zephyrquartz manifold overview covers all intake variants.",
		"manifold notes", "tenant-e2e", "user-1", "user_input", nil, nil)
	require.NoError(t, err)

	resp := a.Search.Search(ctx, search.Request{
		Query:    "zephyrquartz manifold overview",
		TenantID: "tenant-e2e",
		Limit:    10,
		Mode:     search.ModeKeyword,
	})
	require.Empty(t, resp.Error)
	require.NotEmpty(t, resp.Results)
	require.Equal(t, artifact.ID, resp.Results[0].ID)
	require.Equal(t, 1.0, resp.Results[0].Score)
	require.Equal(t, search.MatchExactPhrase, resp.Results[0].MatchType)
}

func TestDiacriticInsensitiveExactPhrase(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	_, err := a.Ingest.IngestSnippet(ctx,
		"Jak se formuje datová budoucnost",
		"Článek", "tenant-e2e", "", "paste", nil, nil)
	require.NoError(t, err)

	resp := a.Search.Search(ctx, search.Request{
		Query:    "datova budoucnost",
		TenantID: "tenant-e2e",
		Limit:    10,
		Mode:     search.ModeKeyword,
	})
	require.Empty(t, resp.Error)
	require.Len(t, resp.Results, 1)
	require.Equal(t, 1.0, resp.Results[0].Score)
	require.Equal(t, search.MatchExactPhrase, resp.Results[0].MatchType)
}

func TestSuggestAfterIngest(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	_, err := a.Ingest.IngestFile(ctx,
		[]byte("Payment issued by Example Industries Inc. for consulting."),
		"consulting-invoice.txt", "text/plain", "tenant-e2e", "", nil, nil)
	require.NoError(t, err)

	suggestions, err := a.Suggest.Suggest(ctx, "tenant-e2e", "consulting-inv", 10)
	require.NoError(t, err)
	require.NotEmpty(t, suggestions)
	require.Equal(t, "file", suggestions[0].Type)
	require.True(t, strings.HasPrefix(suggestions[0].Text, "consulting-inv"))
}

func TestUpdateReflowMakesNewTagSearchable(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	artifact, err := a.Ingest.IngestFile(ctx,
		[]byte("Planning figures for the next fiscal cycle."),
		"planning.txt", "text/plain", "tenant-e2e", "", nil, nil)
	require.NoError(t, err)

	artifact.Tags = append(artifact.Tags, "budget-2025")
	artifact.UpdatedAt = time.Now().UTC()
	require.NoError(t, a.Store.SaveArtifact(ctx, artifact))

	a.Reindex.Submit(model.Event{
		Kind:          model.EventUpdated,
		ArtifactID:    artifact.ID,
		TenantID:      "tenant-e2e",
		ChangedFields: []string{"tags"},
		EmittedAt:     time.Now().UTC(),
	})
	require.True(t, a.Reindex.WaitIdle("tenant-e2e", artifact.ID, 10*time.Second))

	resp := a.Search.Search(ctx, search.Request{
		Query:    "budget-2025",
		TenantID: "tenant-e2e",
		Limit:    10,
		Mode:     search.ModeKeyword,
	})
	require.Empty(t, resp.Error)
	require.NotEmpty(t, resp.Results)
	require.Equal(t, artifact.ID, resp.Results[0].ID)
}

func TestDeleteCascades(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	artifact, err := a.Ingest.IngestSnippet(ctx,
		"A short-lived snippet scheduled for deletion.",
		"ephemeral", "tenant-e2e", "", "api", nil, nil)
	require.NoError(t, err)

	a.Reindex.Submit(model.Event{
		Kind:       model.EventDeleted,
		ArtifactID: artifact.ID,
		TenantID:   "tenant-e2e",
		EmittedAt:  time.Now().UTC(),
	})
	require.True(t, a.Reindex.WaitIdle("tenant-e2e", artifact.ID, 10*time.Second))

	_, err = a.Store.GetArtifact(ctx, "tenant-e2e", artifact.ID)
	require.Error(t, err)

	chunks, err := a.Store.GetChunksByArtifact(ctx, "tenant-e2e", artifact.ID)
	require.NoError(t, err)
	require.Empty(t, chunks)
}

func TestSearchTenantsAreIsolated(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	_, err := a.Ingest.IngestSnippet(ctx,
		"Confidential margins for the northern region.",
		"margins", "tenant-one", "", "api", nil, nil)
	require.NoError(t, err)

	resp := a.Search.Search(ctx, search.Request{
		Query:    "confidential margins northern region",
		TenantID: "tenant-two",
		Limit:    10,
		Mode:     search.ModeKeyword,
	})
	require.Empty(t, resp.Error)
	require.Empty(t, resp.Results)
}
