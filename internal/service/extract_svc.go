package service

import (
	"context"
	"iter"
	"time"

	"github.com/rs/zerolog"

	"github.com/subhajitsr/data-assignment-SPH/internal/etlerr"
	"github.com/subhajitsr/data-assignment-SPH/internal/model"
	"github.com/subhajitsr/data-assignment-SPH/internal/youtube"
)

// Extraction defaults.
const (
	DefaultWindowDays = 365
	DefaultPageSize   = youtube.MaxPageSize
)

// ExtractService pulls channel and video statistics from the YouTube Data
// API and shapes them into the four record sets of one cycle.
type ExtractService struct {
	api        youtube.API
	cache      *CacheService
	windowDays int
	pageSize   int64
	now        func() time.Time
	log        zerolog.Logger
}

// ExtractOption configures an ExtractService.
type ExtractOption func(*ExtractService)

// WithWindow sets the trailing publication window in days.
func WithWindow(days int) ExtractOption {
	return func(s *ExtractService) {
		if days > 0 {
			s.windowDays = days
		}
	}
}

// WithPageSize sets the search and statistics batch size, capped at the API
// maximum.
func WithPageSize(n int64) ExtractOption {
	return func(s *ExtractService) {
		if n > 0 && n <= youtube.MaxPageSize {
			s.pageSize = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ExtractOption {
	return func(s *ExtractService) { s.now = now }
}

// NewExtractService creates an extractor. cache may be nil.
func NewExtractService(api youtube.API, cache *CacheService, log zerolog.Logger, opts ...ExtractOption) *ExtractService {
	s := &ExtractService{
		api:        api,
		cache:      cache,
		windowDays: DefaultWindowDays,
		pageSize:   DefaultPageSize,
		now:        time.Now,
		log:        log.With().Str("component", "extractor").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveChannel returns the channel ID for ref. A name resolves to the
// first search result; an ID is verified to exist.
func (s *ExtractService) ResolveChannel(ctx context.Context, ref model.ChannelRef) (string, error) {
	switch {
	case ref.ID != "":
		found, err := s.api.GetChannels(ctx, ref.ID)
		if err != nil {
			return "", etlerr.Wrap(etlerr.ErrExecution, "resolve_channel", ref.ID, err)
		}
		if len(found) == 0 {
			return "", etlerr.New(etlerr.ErrNotFound, "resolve_channel", ref.ID, "no channel found for channel_id: %s", ref.ID)
		}
		return ref.ID, nil

	case ref.Name != "":
		if id, err := s.cache.GetChannelID(ctx, ref.Name); err != nil {
			s.log.Warn().Err(err).Str("channel_name", ref.Name).Msg("channel id cache read failed")
		} else if id != "" {
			return id, nil
		}

		ids, err := s.api.SearchChannelIDs(ctx, ref.Name, 1)
		if err != nil {
			return "", etlerr.Wrap(etlerr.ErrExecution, "resolve_channel", ref.Name, err)
		}
		if len(ids) == 0 {
			return "", etlerr.New(etlerr.ErrNotFound, "resolve_channel", ref.Name, "no channel found for username: %s", ref.Name)
		}
		if err := s.cache.SetChannelID(ctx, ref.Name, ids[0]); err != nil {
			s.log.Warn().Err(err).Str("channel_name", ref.Name).Msg("channel id cache write failed")
		}
		return ids[0], nil
	}
	return "", etlerr.New(etlerr.ErrInsufficientInput, "resolve_channel", "", "either channel name or channel id needs to be provided")
}

// FetchChannelAttributes returns the snippet and statistics of a channel.
func (s *ExtractService) FetchChannelAttributes(ctx context.Context, channelID string) (model.Channel, error) {
	found, err := s.api.GetChannels(ctx, channelID)
	if err != nil {
		return model.Channel{}, etlerr.Wrap(etlerr.ErrExecution, "fetch_channel", channelID, err)
	}
	if len(found) == 0 {
		return model.Channel{}, etlerr.New(etlerr.ErrNotFound, "fetch_channel", channelID, "no channel found for channel_id: %s", channelID)
	}
	return found[0], nil
}

// FetchRecentVideos yields the channel's videos published within the
// window, one search page at a time. The sequence stops after the first
// error and cannot be restarted.
func (s *ExtractService) FetchRecentVideos(ctx context.Context, channelID string) iter.Seq2[model.Video, error] {
	publishedAfter := s.now().AddDate(0, 0, -s.windowDays)
	consumed := false

	return func(yield func(model.Video, error) bool) {
		if consumed {
			return
		}
		consumed = true

		token := ""
		for {
			page, err := s.api.SearchVideos(ctx, channelID, publishedAfter, s.pageSize, token)
			if err != nil {
				yield(model.Video{}, etlerr.Wrap(etlerr.ErrExecution, "search_videos", channelID, err))
				return
			}

			videos, err := s.FetchVideoStatistics(ctx, page.IDs)
			if err != nil {
				yield(model.Video{}, err)
				return
			}
			for _, v := range videos {
				v.ChannelID = channelID
				if !yield(v, nil) {
					return
				}
			}

			if page.NextPageToken == "" {
				return
			}
			token = page.NextPageToken
		}
	}
}

// FetchVideoStatistics returns snippet and statistics for ids, requested in
// batches of at most the page size. Videos the API no longer returns are
// skipped.
func (s *ExtractService) FetchVideoStatistics(ctx context.Context, ids []string) ([]model.Video, error) {
	var out []model.Video
	for start := 0; start < len(ids); start += int(s.pageSize) {
		end := min(start+int(s.pageSize), len(ids))
		videos, err := s.api.GetVideos(ctx, ids[start:end])
		if err != nil {
			return nil, etlerr.Wrap(etlerr.ErrExecution, "fetch_video_statistics", ids[start], err)
		}
		out = append(out, videos...)
	}
	return out, nil
}

// Extract collects every channel in refs with its recent videos and returns
// the deduplicated snapshot. Any channel failure aborts the extraction.
func (s *ExtractService) Extract(ctx context.Context, refs []model.ChannelRef) (*model.Snapshot, error) {
	stamp := model.NewStamp(s.now())
	s.log.Info().Str("rptg_dt", stamp.ReportingDate).Str("etl_ts", stamp.ETLTs).Msg("extraction started")

	var (
		channels []model.Channel
		videos   []model.Video
	)
	for _, ref := range refs {
		l := s.log.With().Str("channel", ref.String()).Logger()
		l.Info().Msg("fetching channel data")

		id, err := s.ResolveChannel(ctx, ref)
		if err != nil {
			return nil, err
		}
		ch, err := s.FetchChannelAttributes(ctx, id)
		if err != nil {
			return nil, err
		}
		ch.Name = ref.Name
		channels = append(channels, ch)

		n := 0
		for v, err := range s.FetchRecentVideos(ctx, id) {
			if err != nil {
				return nil, err
			}
			videos = append(videos, v)
			n++
		}
		l.Info().Str("channel_id", id).Int("videos", n).Msg("channel data fetched")
	}

	snap := Shape(stamp, channels, videos)
	s.log.Info().
		Int(string(model.ChannelMeta), len(snap.ChannelMeta)).
		Int(string(model.ChannelStats), len(snap.ChannelStats)).
		Int(string(model.VideoMeta), len(snap.VideoMeta)).
		Int(string(model.VideoStats), len(snap.VideoStats)).
		Msg("extraction finished")
	return snap, nil
}
