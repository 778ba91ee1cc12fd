package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/subhajitsr/data-assignment-SPH/internal/model"
	"github.com/subhajitsr/data-assignment-SPH/internal/youtube"
)

// fakeAPI serves canned channels and paged video search results.
type fakeAPI struct {
	mu       sync.Mutex
	byName   map[string]string
	channels map[string]model.Channel
	// pages[channelID] is the ordered list of search result pages.
	pages  map[string][][]string
	videos map[string]model.Video

	searchErr error
	calls     []string
	batches   [][]string
	after     time.Time
}

var _ youtube.API = (*fakeAPI)(nil)

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		byName:   map[string]string{},
		channels: map[string]model.Channel{},
		pages:    map[string][][]string{},
		videos:   map[string]model.Video{},
	}
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) SearchChannelIDs(_ context.Context, query string, _ int64) ([]string, error) {
	f.record("search.channel:" + query)
	if id, ok := f.byName[query]; ok {
		return []string{id}, nil
	}
	return nil, nil
}

func (f *fakeAPI) GetChannels(_ context.Context, ids ...string) ([]model.Channel, error) {
	f.record("channels")
	var out []model.Channel
	for _, id := range ids {
		if ch, ok := f.channels[id]; ok {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (f *fakeAPI) SearchVideos(_ context.Context, channelID string, publishedAfter time.Time, _ int64, token string) (youtube.VideoPage, error) {
	f.record("search.video:" + channelID + ":" + token)
	f.after = publishedAfter
	if f.searchErr != nil {
		return youtube.VideoPage{}, f.searchErr
	}
	pages := f.pages[channelID]
	idx := 0
	if token != "" {
		if _, err := fmt.Sscanf(token, "p%d", &idx); err != nil {
			return youtube.VideoPage{}, err
		}
	}
	if idx >= len(pages) {
		return youtube.VideoPage{}, nil
	}
	page := youtube.VideoPage{IDs: pages[idx]}
	if idx+1 < len(pages) {
		page.NextPageToken = fmt.Sprintf("p%d", idx+1)
	}
	return page, nil
}

func (f *fakeAPI) GetVideos(_ context.Context, ids []string) ([]model.Video, error) {
	f.mu.Lock()
	f.batches = append(f.batches, slices.Clone(ids))
	f.mu.Unlock()
	var out []model.Video
	for _, id := range ids {
		if v, ok := f.videos[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeAPI) addChannel(name string, ch model.Channel) {
	f.byName[name] = ch.ID
	f.channels[ch.ID] = ch
}

func (f *fakeAPI) addVideo(id string, views int64) {
	f.videos[id] = model.Video{ID: id, Title: "title " + id, URL: model.WatchURL(id), PublishedAt: "2024-02-01T00:00:00Z", Views: views}
}
