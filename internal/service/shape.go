package service

import "github.com/subhajitsr/data-assignment-SPH/internal/model"

// Shape splits fetched channels and videos into the four record sets and
// deduplicates each by its natural key, keeping the first occurrence.
func Shape(stamp model.Stamp, channels []model.Channel, videos []model.Video) *model.Snapshot {
	snap := &model.Snapshot{Stamp: stamp}

	for _, ch := range channels {
		snap.ChannelMeta = append(snap.ChannelMeta, model.ChannelMetaRow{
			ChannelName: ch.Name,
			ChannelID:   ch.ID,
			Title:       ch.Title,
			CustomURL:   ch.CustomURL,
			PublishedAt: ch.PublishedAt,
			Country:     ch.Country,
			ETLTs:       stamp.ETLTs,
		})
		snap.ChannelStats = append(snap.ChannelStats, model.ChannelStatsRow{
			ChannelID:       ch.ID,
			ReportingDate:   stamp.ReportingDate,
			ViewCount:       ch.ViewCount,
			SubscriberCount: ch.SubscriberCount,
			VideoCount:      ch.VideoCount,
			ETLTs:           stamp.ETLTs,
		})
	}

	for _, v := range videos {
		snap.VideoMeta = append(snap.VideoMeta, model.VideoMetaRow{
			ID:          v.ID,
			ChannelID:   v.ChannelID,
			Title:       v.Title,
			URL:         v.URL,
			PublishedAt: v.PublishedAt,
			ETLTs:       stamp.ETLTs,
		})
		snap.VideoStats = append(snap.VideoStats, model.VideoStatsRow{
			ID:            v.ID,
			ChannelID:     v.ChannelID,
			ReportingDate: stamp.ReportingDate,
			Views:         v.Views,
			Likes:         v.Likes,
			Dislikes:      v.Dislikes,
			Comments:      v.Comments,
			ETLTs:         stamp.ETLTs,
		})
	}

	type pair struct{ a, b string }
	snap.ChannelMeta = dedupe(snap.ChannelMeta, func(r model.ChannelMetaRow) string { return r.ChannelID })
	snap.ChannelStats = dedupe(snap.ChannelStats, func(r model.ChannelStatsRow) pair { return pair{r.ChannelID, r.ReportingDate} })
	snap.VideoMeta = dedupe(snap.VideoMeta, func(r model.VideoMetaRow) string { return r.ID })
	snap.VideoStats = dedupe(snap.VideoStats, func(r model.VideoStatsRow) pair { return pair{r.ID, r.ReportingDate} })
	return snap
}

func dedupe[T any, K comparable](rows []T, key func(T) K) []T {
	seen := make(map[K]struct{}, len(rows))
	out := rows[:0]
	for _, r := range rows {
		k := key(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}
