package danbooru

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	autoimply "github.com/boorubot/autoimply"
	"github.com/boorubot/autoimply/series"
	"github.com/boorubot/autoimply/sources"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.RequestsPerSecond = 1000
	return New(cfg, nil)
}

func TestFetchTags_MapsFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tags.json", r.URL.Path)
		assert.Equal(t, "*_(blue_archive)", r.URL.Query().Get("search[name_matches]"))
		assert.Equal(t, "4", r.URL.Query().Get("search[category]"))

		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id": 1, "name": "kei_(swimsuit)_(blue_archive)", "post_count": 120,
				"wiki_page": map[string]any{"id": 9},
			},
			{
				"id": 2, "name": "kei_(blue_archive)", "post_count": 900,
				"antecedent_implications": []map[string]any{{"id": 5}},
			},
			{"id": 3, "name": "empty_(blue_archive)", "post_count": 0},
		})
	})

	tags, err := client.FetchTags(context.Background(), series.Config{Name: "blue_archive", TopicID: 1})
	require.NoError(t, err)
	require.Len(t, tags, 2, "empty tags are dropped")

	byName := make(map[string]autoimply.Tag)
	for _, tag := range tags {
		byName[tag.Name] = tag
	}
	assert.True(t, byName["kei_(swimsuit)_(blue_archive)"].HasWiki)
	assert.False(t, byName["kei_(swimsuit)_(blue_archive)"].HasAntecedents)
	assert.True(t, byName["kei_(blue_archive)"].HasAntecedents)
	assert.False(t, byName["kei_(blue_archive)"].HasWiki)
}

func TestFetchTags_DeduplicatesAcrossMarkers(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Both marker searches return the same tag.
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "name": "akagi_(kancolle)", "post_count": 10},
		})
	})

	tags, err := client.FetchTags(context.Background(), series.Config{
		Name:    "kantai_collection",
		TopicID: 1,
		Aliases: []string{"kancolle"},
	})
	require.NoError(t, err)
	assert.Len(t, tags, 1)
}

// mapResolver is a canned TagResolver for tests.
type mapResolver map[string]autoimply.Tag

func (m mapResolver) TagsByNames(ctx context.Context, names []string) (map[string]autoimply.Tag, error) {
	out := make(map[string]autoimply.Tag)
	for _, n := range names {
		if t, ok := m[n]; ok {
			out[n] = t
		}
	}
	return out, nil
}

func TestFetchTags_MirrorResolvesWikiNames(t *testing.T) {
	var nameQueries []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tags.json":
			if names := r.URL.Query().Get("search[name_comma]"); names != "" {
				nameQueries = append(nameQueries, names)
				json.NewEncoder(w).Encode([]map[string]any{
					{"id": 2, "name": "bob_(dress)", "post_count": 30},
				})
				return
			}
			json.NewEncoder(w).Encode([]map[string]any{})
		case "/wiki_pages/10.json":
			json.NewEncoder(w).Encode(map[string]any{"body": "[[alice_(maid)]] and [[bob_(dress)]]"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	client.SetTagResolver(mapResolver{
		"alice_(maid)": {ID: 1, Name: "alice_(maid)", PostCount: 50, HasWiki: true},
	})

	tags, err := client.FetchTags(context.Background(), series.Config{
		Name:    "some_series",
		TopicID: 1,
		WikiIDs: []int{10},
	})
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "alice_(maid)", tags[0].Name)
	assert.Equal(t, "bob_(dress)", tags[1].Name)

	require.Len(t, nameQueries, 1)
	assert.Equal(t, "bob_(dress)", nameQueries[0], "mirror-resolved names skip the site lookup")
}

func TestExistingImplications_MergesSiteAndTopicBURs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tag_implications.json":
			json.NewEncoder(w).Encode([]map[string]any{
				{"antecedent_name": "a_(x)_(s)", "consequent_name": "a_(s)", "status": "active"},
				{"antecedent_name": "old_(s)", "consequent_name": "gone_(s)", "status": "deleted"},
			})
		case "/bulk_update_requests.json":
			json.NewEncoder(w).Encode([]map[string]any{
				{"id": 1, "script": "imply b_(x)_(s) -> b_(s)", "status": "pending"},
				{"id": 2, "script": "imply c_(x)_(s) -> c_(s)", "status": "rejected"},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	existing, err := client.ExistingImplications(context.Background(), series.Config{Name: "s", TopicID: 7})
	require.NoError(t, err)

	assert.True(t, existing[autoimply.ImplicationKey{Child: "a_(x)_(s)", Parent: "a_(s)"}])
	assert.True(t, existing[autoimply.ImplicationKey{Child: "b_(x)_(s)", Parent: "b_(s)"}],
		"pending BUR lines count as existing")
	assert.False(t, existing[autoimply.ImplicationKey{Child: "old_(s)", Parent: "gone_(s)"}],
		"deleted implications are ignored")
	assert.False(t, existing[autoimply.ImplicationKey{Child: "c_(x)_(s)", Parent: "c_(s)"}],
		"rejected BURs are ignored")
}

func TestSubmit_DryRun(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("dry run must not hit the API")
	})

	res, err := client.Submit(context.Background(), sources.Submission{
		TopicID: 7,
		Script:  "imply a_(x)_(s) -> a_(s)",
	}, false)
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Zero(t, res.BURID)
	assert.Equal(t, 7, res.TopicID)
}

func TestSubmit_PostsForm(t *testing.T) {
	var gotScript, gotTopic string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/bulk_update_requests.json", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotScript = r.PostForm.Get("bulk_update_request[script]")
		gotTopic = r.PostForm.Get("bulk_update_request[forum_topic_id]")

		json.NewEncoder(w).Encode(map[string]any{"id": 42, "forum_topic_id": 7, "status": "pending"})
	})
	client.cfg.Login = "bot"
	client.cfg.APIKey = "key"

	res, err := client.Submit(context.Background(), sources.Submission{
		TopicID: 7,
		Script:  "imply b_(x)_(s) -> b_(s)\nimply a_(x)_(s) -> a_(s)\n",
		Reason:  "costume implication",
	}, true)
	require.NoError(t, err)
	assert.Equal(t, 42, res.BURID)
	assert.False(t, res.DryRun)
	assert.Equal(t, "imply a_(x)_(s) -> a_(s)\nimply b_(x)_(s) -> b_(s)", gotScript,
		"script lines are canonicalized before posting")
	assert.Equal(t, "7", gotTopic)
}

func TestSubmit_RequiresCredentials(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("must not hit the API without credentials")
	})

	_, err := client.Submit(context.Background(), sources.Submission{TopicID: 7, Script: "x"}, true)
	require.Error(t, err)
	assert.Equal(t, autoimply.ErrorCategoryAuth, autoimply.GetErrorCategory(err))
}

func TestGetJSON_MapsAPIErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{"message": "throttled"})
	})

	_, err := client.FetchTags(context.Background(), series.Config{Name: "s", TopicID: 1})
	require.Error(t, err)
	assert.True(t, autoimply.IsRetryable(err))
	assert.Equal(t, autoimply.ErrorCategoryRateLimit, autoimply.GetErrorCategory(err))
}

func TestRelatedCopyrights(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/related_tag.json", r.URL.Path)
		assert.Equal(t, "akagi_(kancolle)", r.URL.Query().Get("search[query]"))
		json.NewEncoder(w).Encode(map[string]any{
			"related_tags": []map[string]any{
				{"tag": map[string]any{"name": "kantai_collection", "category": 3}},
				{"tag": map[string]any{"name": "azur_lane", "category": 3}},
			},
		})
	})

	copyrights, err := client.RelatedCopyrights(context.Background(), "akagi_(kancolle)")
	require.NoError(t, err)
	assert.Equal(t, []string{"kantai_collection", "azur_lane"}, copyrights)
}

func TestWikiLinkExtraction(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/wiki_pages/12.json", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"body": "Characters: [[Akagi (Kancolle)]] and [[kaga_(kancolle)|Kaga]] and [[akagi (kancolle)]]",
		})
	})

	names, err := client.wikiLinkedNames(context.Background(), []int{12})
	require.NoError(t, err)
	assert.Equal(t, []string{"akagi_(kancolle)", "kaga_(kancolle)"}, names)
}
