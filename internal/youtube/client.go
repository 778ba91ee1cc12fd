// Package youtube wraps the YouTube Data API v3 calls the extractor needs.
package youtube

import (
	"context"
	"time"

	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/subhajitsr/data-assignment-SPH/internal/etlerr"
	"github.com/subhajitsr/data-assignment-SPH/internal/metrics"
	"github.com/subhajitsr/data-assignment-SPH/internal/model"
)

// MaxPageSize is the API's limit for maxResults and for ids per videos.list call.
const MaxPageSize = 50

// VideoPage is one page of a channel's video search.
type VideoPage struct {
	IDs           []string
	NextPageToken string
}

// API is the subset of the Data API used by the extractor.
type API interface {
	// SearchChannelIDs returns up to max channel IDs matching query.
	SearchChannelIDs(ctx context.Context, query string, max int64) ([]string, error)

	// GetChannels returns the channels found among ids with snippet and statistics.
	GetChannels(ctx context.Context, ids ...string) ([]model.Channel, error)

	// SearchVideos returns one page of video IDs published by channelID after publishedAfter.
	SearchVideos(ctx context.Context, channelID string, publishedAfter time.Time, pageSize int64, pageToken string) (VideoPage, error)

	// GetVideos returns snippet and statistics for up to MaxPageSize ids.
	GetVideos(ctx context.Context, ids []string) ([]model.Video, error)
}

// Client implements API on the generated Data API client.
type Client struct {
	svc     *yt.Service
	limiter *rate.Limiter
}

var _ API = (*Client)(nil)

// New authenticates with a service-account JSON key (read-only scope) and
// builds a client. The key is exchanged for a token up front so bad
// credentials fail here rather than on the first call.
func New(ctx context.Context, credentialsJSON []byte, limiter *rate.Limiter) (*Client, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, yt.YoutubeReadonlyScope)
	if err != nil {
		return nil, etlerr.Wrap(etlerr.ErrCredential, "parse_credentials", "", err)
	}
	if _, err := creds.TokenSource.Token(); err != nil {
		return nil, etlerr.Wrap(etlerr.ErrCredential, "authenticate", "", err)
	}
	return NewWithOptions(ctx, limiter, option.WithCredentials(creds))
}

// NewWithOptions builds a client from raw client options (custom endpoint,
// HTTP client, API key).
func NewWithOptions(ctx context.Context, limiter *rate.Limiter, opts ...option.ClientOption) (*Client, error) {
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, etlerr.Wrap(etlerr.ErrCredential, "build_client", "", err)
	}
	return &Client{svc: svc, limiter: limiter}, nil
}

// wait paces calls when a limiter is configured.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func observe(method string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.APICalls.WithLabelValues(method, outcome).Inc()
}

func (c *Client) SearchChannelIDs(ctx context.Context, query string, max int64) ([]string, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.svc.Search.List([]string{"id"}).
		Q(query).
		Type("channel").
		MaxResults(max).
		Context(ctx).
		Do()
	observe("search.list", err)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, item := range resp.Items {
		if item.Id != nil && item.Id.ChannelId != "" {
			ids = append(ids, item.Id.ChannelId)
		}
	}
	return ids, nil
}

func (c *Client) GetChannels(ctx context.Context, ids ...string) ([]model.Channel, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.svc.Channels.List([]string{"snippet", "statistics"}).
		Id(ids...).
		Context(ctx).
		Do()
	observe("channels.list", err)
	if err != nil {
		return nil, err
	}

	channels := make([]model.Channel, 0, len(resp.Items))
	for _, item := range resp.Items {
		ch := model.Channel{ID: item.Id}
		if s := item.Snippet; s != nil {
			ch.Title = s.Title
			ch.Description = s.Description
			ch.CustomURL = s.CustomUrl
			ch.PublishedAt = s.PublishedAt
			ch.Country = s.Country
		}
		if st := item.Statistics; st != nil {
			ch.ViewCount = int64(st.ViewCount)
			ch.SubscriberCount = int64(st.SubscriberCount)
			ch.VideoCount = int64(st.VideoCount)
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

func (c *Client) SearchVideos(ctx context.Context, channelID string, publishedAfter time.Time, pageSize int64, pageToken string) (VideoPage, error) {
	if err := c.wait(ctx); err != nil {
		return VideoPage{}, err
	}
	call := c.svc.Search.List([]string{"id"}).
		ChannelId(channelID).
		PublishedAfter(publishedAfter.UTC().Format(time.RFC3339)).
		MaxResults(pageSize).
		Type("video").
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Do()
	observe("search.list", err)
	if err != nil {
		return VideoPage{}, err
	}

	page := VideoPage{NextPageToken: resp.NextPageToken}
	for _, item := range resp.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			page.IDs = append(page.IDs, item.Id.VideoId)
		}
	}
	return page, nil
}

func (c *Client) GetVideos(ctx context.Context, ids []string) ([]model.Video, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.svc.Videos.List([]string{"snippet", "statistics"}).
		Id(ids...).
		Context(ctx).
		Do()
	observe("videos.list", err)
	if err != nil {
		return nil, err
	}

	videos := make([]model.Video, 0, len(resp.Items))
	for _, item := range resp.Items {
		v := model.Video{ID: item.Id, URL: model.WatchURL(item.Id)}
		if s := item.Snippet; s != nil {
			v.Title = s.Title
			v.PublishedAt = s.PublishedAt
			v.ChannelID = s.ChannelId
		}
		// Hidden counters are omitted by the API and stay zero.
		if st := item.Statistics; st != nil {
			v.Views = int64(st.ViewCount)
			v.Likes = int64(st.LikeCount)
			v.Dislikes = int64(st.DislikeCount)
			v.Comments = int64(st.CommentCount)
		}
		videos = append(videos, v)
	}
	return videos, nil
}
