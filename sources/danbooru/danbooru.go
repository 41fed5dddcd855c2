package danbooru

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	autoimply "github.com/boorubot/autoimply"
	"github.com/boorubot/autoimply/series"
)

const (
	categoryCharacter = 4
	tagFields         = "id,name,post_count,is_deprecated,updated_at,wiki_page[id],antecedent_implications[id]"
)

type apiTag struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	PostCount    int       `json:"post_count"`
	IsDeprecated bool      `json:"is_deprecated"`
	UpdatedAt    time.Time `json:"updated_at"`
	WikiPage     *struct {
		ID int `json:"id"`
	} `json:"wiki_page"`
	AntecedentImplications []struct {
		ID int `json:"id"`
	} `json:"antecedent_implications"`
}

func (t apiTag) toTag() autoimply.Tag {
	return autoimply.Tag{
		ID:             t.ID,
		Name:           t.Name,
		PostCount:      t.PostCount,
		IsDeprecated:   t.IsDeprecated,
		HasWiki:        t.WikiPage != nil,
		HasAntecedents: len(t.AntecedentImplications) > 0,
		UpdatedAt:      t.UpdatedAt,
	}
}

// FetchTags returns the character tags for the series: every tag carrying
// one of the series markers as a qualifier, plus any character tags linked
// from the configured wiki pages. Deprecated and empty tags are excluded.
func (c *Client) FetchTags(ctx context.Context, cfg series.Config) ([]autoimply.Tag, error) {
	seen := make(map[string]bool)
	var tags []autoimply.Tag

	for _, marker := range cfg.Markers() {
		pattern := "*_(" + marker + ")"
		matched, err := c.searchTags(ctx, url.Values{
			"search[name_matches]":  {pattern},
			"search[category]":      {fmt.Sprint(categoryCharacter)},
			"search[hide_empty]":    {"yes"},
			"search[is_deprecated]": {"false"},
		})
		if err != nil {
			return nil, err
		}
		for _, t := range matched {
			if !seen[t.Name] {
				seen[t.Name] = true
				tags = append(tags, t)
			}
		}
	}

	if len(cfg.WikiIDs) > 0 {
		names, err := c.wikiLinkedNames(ctx, cfg.WikiIDs)
		if err != nil {
			return nil, err
		}
		var missing []string
		for _, name := range names {
			if !seen[name] {
				missing = append(missing, name)
			}
		}
		missing, mirrored := c.resolveFromMirror(ctx, missing)
		for _, t := range mirrored {
			if !seen[t.Name] {
				seen[t.Name] = true
				tags = append(tags, t)
			}
		}
		linked, err := c.tagsByNames(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, t := range linked {
			if !seen[t.Name] {
				seen[t.Name] = true
				tags = append(tags, t)
			}
		}
	}

	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	c.log.Debug("fetched series tags", zap.String("series", cfg.Name), zap.Int("count", len(tags)))
	return tags, nil
}

func (c *Client) searchTags(ctx context.Context, search url.Values) ([]autoimply.Tag, error) {
	var tags []autoimply.Tag
	for page := 1; ; page++ {
		query := pageParams(c.cfg.PageLimit, page)
		for k, v := range search {
			query[k] = v
		}
		query.Set("only", tagFields)

		var batch []apiTag
		if err := c.getJSON(ctx, "fetch_tags", "/tags.json", query, &batch); err != nil {
			return nil, err
		}
		for _, t := range batch {
			if t.PostCount <= 0 || t.IsDeprecated {
				continue
			}
			tags = append(tags, t.toTag())
		}
		if len(batch) < c.cfg.PageLimit {
			return tags, nil
		}
	}
}

// tagsByNames resolves tag records in comma-separated batches.
func (c *Client) tagsByNames(ctx context.Context, names []string) ([]autoimply.Tag, error) {
	const batchSize = 100
	var tags []autoimply.Tag
	for start := 0; start < len(names); start += batchSize {
		end := min(start+batchSize, len(names))
		query := pageParams(c.cfg.PageLimit, 1)
		query.Set("search[name_comma]", strings.Join(names[start:end], ","))
		query.Set("search[category]", fmt.Sprint(categoryCharacter))
		query.Set("only", tagFields)

		var batch []apiTag
		if err := c.getJSON(ctx, "tags_by_names", "/tags.json", query, &batch); err != nil {
			return nil, err
		}
		for _, t := range batch {
			if t.PostCount <= 0 || t.IsDeprecated {
				continue
			}
			tags = append(tags, t.toTag())
		}
	}
	return tags, nil
}

// resolveFromMirror looks the names up in the local tag mirror, when one
// is installed. It returns the names still unresolved and the usable
// mirrored records; mirror failures fall back to resolving everything from
// the site.
func (c *Client) resolveFromMirror(ctx context.Context, names []string) ([]string, []autoimply.Tag) {
	if c.resolver == nil || len(names) == 0 {
		return names, nil
	}
	known, err := c.resolver.TagsByNames(ctx, names)
	if err != nil {
		c.log.Warn("tag mirror lookup failed, resolving from the site", zap.Error(err))
		return names, nil
	}

	var unresolved []string
	var tags []autoimply.Tag
	for _, name := range names {
		t, ok := known[name]
		if !ok {
			unresolved = append(unresolved, name)
			continue
		}
		if t.PostCount <= 0 || t.IsDeprecated {
			continue
		}
		tags = append(tags, t)
	}
	return unresolved, tags
}

var wikiLink = regexp.MustCompile(`\[\[([^|\]]+)(?:\|[^\]]*)?\]\]`)

// wikiLinkedNames extracts the tag names linked from the given wiki pages.
// Danbooru wiki dtext links tags as [[name]] or [[name|label]].
func (c *Client) wikiLinkedNames(ctx context.Context, wikiIDs []int) ([]string, error) {
	seen := make(map[string]bool)
	var names []string
	for _, id := range wikiIDs {
		var page struct {
			Body string `json:"body"`
		}
		query := url.Values{"only": {"body"}}
		if err := c.getJSON(ctx, "wiki_page", fmt.Sprintf("/wiki_pages/%d.json", id), query, &page); err != nil {
			return nil, err
		}
		for _, m := range wikiLink.FindAllStringSubmatch(page.Body, -1) {
			name := strings.ToLower(strings.TrimSpace(m[1]))
			name = strings.ReplaceAll(name, " ", "_")
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, nil
}

type apiImplication struct {
	AntecedentName string `json:"antecedent_name"`
	ConsequentName string `json:"consequent_name"`
	Status         string `json:"status"`
}

// ExistingImplications returns every implication pair already on the site
// for the series markers, plus pairs pending in open bulk update requests
// in the series topic.
func (c *Client) ExistingImplications(ctx context.Context, cfg series.Config) (map[autoimply.ImplicationKey]bool, error) {
	existing := make(map[autoimply.ImplicationKey]bool)

	for _, marker := range cfg.Markers() {
		for page := 1; ; page++ {
			query := pageParams(c.cfg.PageLimit, page)
			query.Set("search[antecedent_name_matches]", "*_("+marker+")")
			query.Set("only", "antecedent_name,consequent_name,status")

			var batch []apiImplication
			if err := c.getJSON(ctx, "existing_implications", "/tag_implications.json", query, &batch); err != nil {
				return nil, err
			}
			for _, im := range batch {
				switch im.Status {
				case "deleted", "retired":
					continue
				}
				existing[autoimply.ImplicationKey{Child: im.AntecedentName, Parent: im.ConsequentName}] = true
			}
			if len(batch) < c.cfg.PageLimit {
				break
			}
		}
	}

	burs, err := c.topicBURs(ctx, cfg.TopicID)
	if err != nil {
		return nil, err
	}
	for _, b := range burs {
		if b.Status == autoimply.BURRejected {
			continue
		}
		for _, key := range b.Implications() {
			existing[key] = true
		}
	}
	return existing, nil
}

// RelatedCopyrights returns the copyright tags most frequent on the tag's
// posts, in descending frequency order.
func (c *Client) RelatedCopyrights(ctx context.Context, tag string) ([]string, error) {
	var resp struct {
		RelatedTags []struct {
			Tag struct {
				Name     string `json:"name"`
				Category int    `json:"category"`
			} `json:"tag"`
		} `json:"related_tags"`
	}
	query := url.Values{
		"search[query]":    {tag},
		"search[category]": {"Copyright"},
		"limit":            {"25"},
	}
	if err := c.getJSON(ctx, "related_copyrights", "/related_tag.json", query, &resp); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.RelatedTags))
	for _, rt := range resp.RelatedTags {
		names = append(names, rt.Tag.Name)
	}
	return names, nil
}

type apiBUR struct {
	ID           int       `json:"id"`
	Script       string    `json:"script"`
	Status       string    `json:"status"`
	ForumTopicID int       `json:"forum_topic_id"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (b apiBUR) toRecord() autoimply.BURRecord {
	return autoimply.BURRecord{
		ID:        b.ID,
		Script:    b.Script,
		Status:    autoimply.BURStatus(b.Status),
		UpdatedAt: b.UpdatedAt,
	}
}

func (c *Client) topicBURs(ctx context.Context, topicID int) ([]autoimply.BURRecord, error) {
	var records []autoimply.BURRecord
	for page := 1; ; page++ {
		query := pageParams(c.cfg.PageLimit, page)
		query.Set("search[forum_topic_id]", fmt.Sprint(topicID))
		query.Set("only", "id,script,status,forum_topic_id,updated_at")

		var batch []apiBUR
		if err := c.getJSON(ctx, "topic_burs", "/bulk_update_requests.json", query, &batch); err != nil {
			return nil, err
		}
		for _, b := range batch {
			records = append(records, b.toRecord())
		}
		if len(batch) < c.cfg.PageLimit {
			return records, nil
		}
	}
}

// ListBURs returns the bot's bulk update requests updated since the given
// time, oldest first. It feeds the local store mirror.
func (c *Client) ListBURs(ctx context.Context, since time.Time) ([]autoimply.BURRecord, error) {
	var records []autoimply.BURRecord
	for page := 1; ; page++ {
		query := pageParams(c.cfg.PageLimit, page)
		if c.cfg.Login != "" {
			query.Set("search[user_name]", c.cfg.Login)
		}
		if !since.IsZero() {
			query.Set("search[updated_at]", ">="+since.UTC().Format(time.RFC3339))
		}
		query.Set("search[order]", "updated_at_asc")
		query.Set("only", "id,script,status,forum_topic_id,updated_at")

		var batch []apiBUR
		if err := c.getJSON(ctx, "list_burs", "/bulk_update_requests.json", query, &batch); err != nil {
			return nil, err
		}
		for _, b := range batch {
			records = append(records, b.toRecord())
		}
		if len(batch) < c.cfg.PageLimit {
			return records, nil
		}
	}
}
