package api

import (
	"context"
	"fmt"
	"net/url"

	"soulchat-agent/internal/domain/notification"
)

type markThreadReadRequest struct {
	Type     notification.ChatKind `json:"type"`
	ThreadID string                `json:"threadId"`
}

// SocialUnreadCounts returns unread follows, likes and comments.
func (c *Client) SocialUnreadCounts(ctx context.Context) (*notification.SocialCounts, error) {
	var counts notification.SocialCounts
	if err := c.get(ctx, "/notifications/unread-count/social", &counts); err != nil {
		return nil, fmt.Errorf("client.SocialUnreadCounts: %w", err)
	}
	return &counts, nil
}

// ThreadUnreadCounts returns the number of unread whisper and soul-chat threads.
func (c *Client) ThreadUnreadCounts(ctx context.Context) (*notification.ThreadCounts, error) {
	var counts notification.ThreadCounts
	if err := c.get(ctx, "/notifications/unread-count/threads", &counts); err != nil {
		return nil, fmt.Errorf("client.ThreadUnreadCounts: %w", err)
	}
	return &counts, nil
}

// MarkThreadRead marks a whole whisper or soul-chat thread read.
func (c *Client) MarkThreadRead(ctx context.Context, kind notification.ChatKind, threadID string) error {
	body := markThreadReadRequest{Type: kind, ThreadID: threadID}
	if err := c.post(ctx, "/notifications/mark-thread-read", body, nil); err != nil {
		return fmt.Errorf("client.MarkThreadRead: %w", err)
	}
	return nil
}

// Feed returns the historical notification feed.
func (c *Client) Feed(ctx context.Context) ([]notification.Event, error) {
	var events []notification.Event
	if err := c.get(ctx, "/notifications/feed", &events); err != nil {
		return nil, fmt.Errorf("client.Feed: %w", err)
	}
	return events, nil
}

// MarkNotificationRead marks a single notification read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	if err := c.post(ctx, "/notifications/"+url.PathEscape(id)+"/read", nil, nil); err != nil {
		return fmt.Errorf("client.MarkNotificationRead: %w", err)
	}
	return nil
}
