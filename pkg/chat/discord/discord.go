// Package discord implements chat.Client over the Discord REST API.
// Requests go through retryablehttp, which backs off on 429s using the
// Retry-After header, and responses are picked apart with gjson rather
// than full struct unmarshalling.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/vznh/conviction/internal/utils"
	"github.com/vznh/conviction/pkg/chat"
)

const (
	apiBase         = "https://discord.com/api/v10"
	archivedPerPage = 100
)

type Client struct {
	token          string
	guildID        string
	threadsChannel string
	http           *retryablehttp.Client
}

// New creates a client for a single guild. threadsChannel is the channel
// whose threads hold daily entries.
func New(token, guildID, threadsChannel string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 4
	rc.RetryWaitMin = 1 * time.Second
	rc.RetryWaitMax = 30 * time.Second
	rc.Logger = nil
	return &Client{
		token:          token,
		guildID:        guildID,
		threadsChannel: threadsChannel,
		http:           rc,
	}
}

func (c *Client) request(ctx context.Context, method, path string, payload any) (string, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return "", err
		}
		body = bytes.NewReader(raw)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, apiBase+path, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("User-Agent", "conviction (https://github.com/vznh/conviction, 1.0)")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", fmt.Errorf("discord: %s %s returned %d: %s", method, path, res.StatusCode, string(raw))
	}
	return string(raw), nil
}

func (c *Client) ListGroupMembers(ctx context.Context) ([]chat.Member, error) {
	var members []chat.Member
	after := ""
	for {
		path := "/guilds/" + c.guildID + "/members?limit=1000"
		if after != "" {
			path += "&after=" + after
		}
		body, err := c.request(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}

		page := gjson.Parse(body).Array()
		for _, m := range page {
			username := m.Get("user.username").Str
			display := m.Get("nick").Str
			if display == "" {
				display = m.Get("user.global_name").Str
			}
			if display == "" {
				display = username
			}
			members = append(members, chat.Member{
				ID:          m.Get("user.id").Str,
				Username:    username,
				DisplayName: display,
				Bot:         m.Get("user.bot").Bool(),
			})
		}

		if len(page) < 1000 {
			return members, nil
		}
		after = page[len(page)-1].Get("user.id").Str
	}
}

func (c *Client) ListActiveResources(ctx context.Context) ([]chat.Resource, error) {
	body, err := c.request(ctx, http.MethodGet, "/guilds/"+c.guildID+"/threads/active", nil)
	if err != nil {
		return nil, err
	}

	var resources []chat.Resource
	for _, t := range gjson.Get(body, "threads").Array() {
		if t.Get("parent_id").Str != c.threadsChannel {
			continue
		}
		resources = append(resources, chat.Resource{
			ID:   t.Get("id").Str,
			Name: t.Get("name").Str,
		})
	}
	return resources, nil
}

func (c *Client) ListArchivedResources(ctx context.Context, cursor string) (chat.ResourcePage, error) {
	path := "/channels/" + c.threadsChannel + "/threads/archived/private?limit=" + strconv.Itoa(archivedPerPage)
	if cursor != "" {
		path += "&before=" + url.QueryEscape(cursor)
	}
	body, err := c.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return chat.ResourcePage{}, err
	}

	page := chat.ResourcePage{HasMore: gjson.Get(body, "has_more").Bool()}
	for _, t := range gjson.Get(body, "threads").Array() {
		page.Resources = append(page.Resources, chat.Resource{
			ID:   t.Get("id").Str,
			Name: t.Get("name").Str,
		})
		page.Cursor = t.Get("thread_metadata.archive_timestamp").Str
	}
	return page, nil
}

func (c *Client) Rename(ctx context.Context, resourceID, newName string) error {
	_, err := c.request(ctx, http.MethodPatch, "/channels/"+resourceID, map[string]any{"name": newName})
	return err
}

func (c *Client) SetLocked(ctx context.Context, resourceID string, locked bool) error {
	_, err := c.request(ctx, http.MethodPatch, "/channels/"+resourceID, map[string]any{"locked": locked})
	return err
}

func (c *Client) SetArchived(ctx context.Context, resourceID string, archived bool) error {
	_, err := c.request(ctx, http.MethodPatch, "/channels/"+resourceID, map[string]any{"archived": archived})
	return err
}

func (c *Client) CreateThread(ctx context.Context, name string) (chat.Resource, error) {
	body, err := c.request(ctx, http.MethodPost, "/channels/"+c.threadsChannel+"/threads", map[string]any{
		"name":      name,
		"type":      12, // private thread
		"invitable": false,
	})
	if err != nil {
		return chat.Resource{}, err
	}
	return chat.Resource{
		ID:   gjson.Get(body, "id").Str,
		Name: gjson.Get(body, "name").Str,
	}, nil
}

func (c *Client) AddThreadMember(ctx context.Context, resourceID, userID string) error {
	_, err := c.request(ctx, http.MethodPut, "/channels/"+resourceID+"/thread-members/"+userID, nil)
	return err
}

func (c *Client) FetchMessages(ctx context.Context, channelID string, limit int) ([]chat.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	body, err := c.request(ctx, http.MethodGet, "/channels/"+channelID+"/messages?limit="+strconv.Itoa(limit), nil)
	if err != nil {
		return nil, err
	}

	var messages []chat.Message
	for _, m := range gjson.Parse(body).Array() {
		msg := chat.Message{
			ID:          m.Get("id").Str,
			ChannelID:   channelID,
			AuthorID:    m.Get("author.id").Str,
			AuthorBot:   m.Get("author.bot").Bool(),
			Content:     m.Get("content").Str,
			ReferenceID: m.Get("message_reference.message_id").Str,
		}
		for _, a := range m.Get("attachments").Array() {
			msg.Attachments = append(msg.Attachments, chat.Attachment{
				ContentType: a.Get("content_type").Str,
			})
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (c *Client) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	body, err := c.request(ctx, http.MethodPost, "/channels/"+channelID+"/messages", map[string]any{"content": content})
	if err != nil {
		return "", err
	}
	return gjson.Get(body, "id").Str, nil
}

func (c *Client) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	_, err := c.request(ctx, http.MethodPatch, "/channels/"+channelID+"/messages/"+messageID, map[string]any{"content": content})
	return err
}

func (c *Client) React(ctx context.Context, channelID, messageID, emoji string) error {
	_, err := c.request(ctx, http.MethodPut, "/channels/"+channelID+"/messages/"+messageID+"/reactions/"+url.PathEscape(emoji)+"/@me", nil)
	return err
}

func (c *Client) SendDirectMessage(ctx context.Context, userID, content string) error {
	body, err := c.request(ctx, http.MethodPost, "/users/@me/channels", map[string]any{"recipient_id": userID})
	if err != nil {
		return err
	}
	dmChannel := gjson.Get(body, "id").Str
	if dmChannel == "" {
		return fmt.Errorf("discord: no DM channel for user %s", userID)
	}
	if _, err := c.SendMessage(ctx, dmChannel, content); err != nil {
		utils.Log.Debugf("DM send to %s failed: %v", userID, err)
		return err
	}
	return nil
}

var _ chat.Client = (*Client)(nil)
