package danbooru

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	autoimply "github.com/boorubot/autoimply"
	"github.com/boorubot/autoimply/sources"
	"github.com/boorubot/autoimply/utils"
)

// PendingBURCount returns how many of the bot's requests are still pending
// in the topic.
func (c *Client) PendingBURCount(ctx context.Context, topicID int) (int, error) {
	query := url.Values{
		"search[forum_topic_id]": {fmt.Sprint(topicID)},
		"search[status]":         {string(autoimply.BURPending)},
	}
	if c.cfg.Login != "" {
		query.Set("search[user_name]", c.cfg.Login)
	}

	var resp struct {
		Counts struct {
			BulkUpdateRequests int `json:"bulk_update_requests"`
		} `json:"counts"`
	}
	if err := c.getJSON(ctx, "pending_bur_count", "/counts/bulk_update_requests.json", query, &resp); err != nil {
		return 0, err
	}
	return resp.Counts.BulkUpdateRequests, nil
}

// Submit files a bulk update request. With autopost false nothing is sent;
// the returned result carries the script that would have been posted.
func (c *Client) Submit(ctx context.Context, sub sources.Submission, autopost bool) (autoimply.SubmissionResult, error) {
	// Identical proposals must always produce identical request bodies.
	script := utils.SortScriptLines(sub.Script)

	if !autopost {
		c.log.Info("dry run, skipping submission",
			zap.Int("topic_id", sub.TopicID),
			zap.String("script", script))
		return autoimply.SubmissionResult{
			TopicID: sub.TopicID,
			Script:  script,
			DryRun:  true,
		}, nil
	}

	if c.cfg.Login == "" || c.cfg.APIKey == "" {
		return autoimply.SubmissionResult{}, autoimply.NewSourceError("danbooru", "submit", "credentials required").
			WithCategory(autoimply.ErrorCategoryAuth)
	}

	form := url.Values{
		"bulk_update_request[script]":         {script},
		"bulk_update_request[forum_topic_id]": {fmt.Sprint(sub.TopicID)},
		"bulk_update_request[reason]":         {sub.Reason},
	}

	var created apiBUR
	if err := c.postForm(ctx, "submit", "/bulk_update_requests.json", form, &created); err != nil {
		return autoimply.SubmissionResult{}, err
	}

	c.log.Info("bulk update request created",
		zap.Int("bur_id", created.ID),
		zap.Int("topic_id", sub.TopicID))
	return autoimply.SubmissionResult{
		BURID:   created.ID,
		TopicID: sub.TopicID,
		Script:  script,
	}, nil
}
