package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/raffleri/raffleri/internal/stream"
)

// Terminal feed conditions. The collector records these into last_error
// like any other fetch failure; deciding to stop collecting is the
// caller's job.
var (
	ErrChatEnded    = errors.New("youtube: live chat has ended")
	ErrChatDisabled = errors.New("youtube: live chat is disabled for this broadcast")
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

type Client struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:  apiKey,
		BaseURL: defaultBaseURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Errors  []struct {
		Reason string `json:"reason"`
	} `json:"errors"`
}

func (e *apiError) reason() string {
	if len(e.Errors) > 0 {
		return e.Errors[0].Reason
	}
	return ""
}

// get performs one API call and decodes the response into out. Non-2xx
// responses with a parseable error body are mapped to the terminal
// sentinels where applicable.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if c.APIKey == "" {
		return errors.New("youtube: api key is not configured")
	}
	params.Set("key", c.APIKey)

	u := fmt.Sprintf("%s/%s?%s", c.BaseURL, endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body struct {
			Error *apiError `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != nil {
			if body.Error.Code == 403 {
				switch body.Error.reason() {
				case "liveChatEnded":
					return ErrChatEnded
				case "liveChatDisabled":
					return ErrChatDisabled
				}
			}
			return fmt.Errorf("youtube: api error %d: %s", body.Error.Code, body.Error.Message)
		}
		return fmt.Errorf("youtube: status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

type liveChatItem struct {
	ID      string `json:"id"`
	Snippet struct {
		Type           string `json:"type"`
		DisplayMessage string `json:"displayMessage"`
		PublishedAt    string `json:"publishedAt"`
	} `json:"snippet"`
	AuthorDetails struct {
		DisplayName string `json:"displayName"`
	} `json:"authorDetails"`
}

// FetchLiveChatPage returns one page of chat events, the next page
// token and the server-suggested polling interval in milliseconds.
// Only user-visible message types are kept.
func (c *Client) FetchLiveChatPage(ctx context.Context, liveChatID, pageToken string) ([]stream.IncomingMessage, string, int, error) {
	params := url.Values{}
	params.Set("liveChatId", liveChatID)
	params.Set("part", "snippet,authorDetails")
	params.Set("maxResults", "200")
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	var data struct {
		Items                 []liveChatItem `json:"items"`
		NextPageToken         string         `json:"nextPageToken"`
		PollingIntervalMillis int            `json:"pollingIntervalMillis"`
	}
	if err := c.get(ctx, "liveChat/messages", params, &data); err != nil {
		return nil, "", 0, err
	}

	msgs := make([]stream.IncomingMessage, 0, len(data.Items))
	for _, item := range data.Items {
		switch item.Snippet.Type {
		case "textMessageEvent", "superChatEvent", "superStickerEvent":
		default:
			continue
		}
		username := item.AuthorDetails.DisplayName
		if username == "" {
			username = "Unknown"
		}
		msgs = append(msgs, stream.IncomingMessage{
			MessageID:   item.ID,
			Username:    username,
			CommentText: item.Snippet.DisplayMessage,
			PublishedAt: item.Snippet.PublishedAt,
		})
	}

	millis := data.PollingIntervalMillis
	if millis == 0 {
		millis = 1000
	}
	return msgs, data.NextPageToken, millis, nil
}

// IsLive reports whether the video is currently live.
func (c *Client) IsLive(ctx context.Context, videoID string) (bool, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("id", videoID)

	var data struct {
		Items []struct {
			Snippet struct {
				LiveBroadcastContent string `json:"liveBroadcastContent"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := c.get(ctx, "videos", params, &data); err != nil {
		return false, err
	}
	if len(data.Items) == 0 {
		return false, nil
	}
	return data.Items[0].Snippet.LiveBroadcastContent == "live", nil
}

// LiveChatID returns the video's activeLiveChatId, or empty when the
// video has no active chat.
func (c *Client) LiveChatID(ctx context.Context, videoID string) (string, error) {
	params := url.Values{}
	params.Set("part", "liveStreamingDetails")
	params.Set("id", videoID)

	var data struct {
		Items []struct {
			LiveStreamingDetails struct {
				ActiveLiveChatID string `json:"activeLiveChatId"`
			} `json:"liveStreamingDetails"`
		} `json:"items"`
	}
	if err := c.get(ctx, "videos", params, &data); err != nil {
		return "", err
	}
	if len(data.Items) == 0 {
		return "", nil
	}
	return data.Items[0].LiveStreamingDetails.ActiveLiveChatID, nil
}

// ResolveChannelID accepts /channel/ URLs directly and resolves
// @handle URLs via channels.list forHandle.
func (c *Client) ResolveChannelID(ctx context.Context, channelURL string) (string, error) {
	if id := ExtractChannelID(channelURL); id != "" {
		return id, nil
	}
	handle := ExtractHandle(channelURL)
	if handle == "" {
		return "", fmt.Errorf("youtube: cannot resolve channel id from %q", channelURL)
	}

	params := url.Values{}
	params.Set("part", "id")
	params.Set("forHandle", handle)

	var data struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	if err := c.get(ctx, "channels", params, &data); err != nil {
		return "", err
	}
	if len(data.Items) == 0 {
		return "", fmt.Errorf("youtube: no channel found for handle %q", handle)
	}
	return data.Items[0].ID, nil
}

type LiveStream struct {
	VideoID    string `json:"video_id"`
	VideoURL   string `json:"video_url"`
	LiveChatID string `json:"live_chat_id,omitempty"`
	Title      string `json:"title"`
}

// ActiveLiveStreams lists the channel's currently live broadcasts with
// their chat ids (chat id lookup failures leave the field empty rather
// than failing the whole listing).
func (c *Client) ActiveLiveStreams(ctx context.Context, channelID string) ([]LiveStream, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("channelId", channelID)
	params.Set("eventType", "live")
	params.Set("type", "video")
	params.Set("maxResults", "50")

	var data struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
			Snippet struct {
				Title string `json:"title"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := c.get(ctx, "search", params, &data); err != nil {
		return nil, err
	}

	streams := make([]LiveStream, 0, len(data.Items))
	for _, item := range data.Items {
		if item.ID.VideoID == "" {
			continue
		}
		s := LiveStream{
			VideoID:  item.ID.VideoID,
			VideoURL: "https://www.youtube.com/watch?v=" + item.ID.VideoID,
			Title:    item.Snippet.Title,
		}
		if chatID, err := c.LiveChatID(ctx, item.ID.VideoID); err == nil {
			s.LiveChatID = chatID
		}
		streams = append(streams, s)
	}
	return streams, nil
}

type ChannelStats struct {
	Title           string `json:"title"`
	SubscriberCount int64  `json:"subscriber_count"`
	VideoCount      int64  `json:"video_count"`
	ViewCount       int64  `json:"view_count"`
}

func (c *Client) ChannelStats(ctx context.Context, channelID string) (*ChannelStats, error) {
	params := url.Values{}
	params.Set("part", "snippet,statistics")
	params.Set("id", channelID)

	var data struct {
		Items []struct {
			Snippet struct {
				Title string `json:"title"`
			} `json:"snippet"`
			Statistics struct {
				SubscriberCount string `json:"subscriberCount"`
				VideoCount      string `json:"videoCount"`
				ViewCount       string `json:"viewCount"`
			} `json:"statistics"`
		} `json:"items"`
	}
	if err := c.get(ctx, "channels", params, &data); err != nil {
		return nil, err
	}
	if len(data.Items) == 0 {
		return nil, fmt.Errorf("youtube: channel %q not found", channelID)
	}

	item := data.Items[0]
	return &ChannelStats{
		Title:           item.Snippet.Title,
		SubscriberCount: parseCount(item.Statistics.SubscriberCount),
		VideoCount:      parseCount(item.Statistics.VideoCount),
		ViewCount:       parseCount(item.Statistics.ViewCount),
	}, nil
}

func parseCount(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
