package model

import "fmt"

// Video is a single upload with its cumulative statistics.
type Video struct {
	ID          string
	Title       string
	URL         string
	PublishedAt string
	ChannelID   string
	Views       int64
	Likes       int64
	Dislikes    int64
	Comments    int64
}

// WatchURL returns the public watch URL for a video ID.
func WatchURL(videoID string) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
}

// VideoMetaRow is one row of the video_md record set, keyed by id.
type VideoMetaRow struct {
	ID          string `parquet:"id"`
	ChannelID   string `parquet:"channel_id"`
	Title       string `parquet:"title"`
	URL         string `parquet:"url"`
	PublishedAt string `parquet:"publishedAt"`
	ETLTs       string `parquet:"etl_ts"`
}

// VideoStatsRow is one row of the video_stats record set, keyed by
// (id, rptg_dt).
type VideoStatsRow struct {
	ID            string `parquet:"id"`
	ChannelID     string `parquet:"channel_id"`
	ReportingDate string `parquet:"rptg_dt"`
	Views         int64  `parquet:"views"`
	Likes         int64  `parquet:"likes"`
	Dislikes      int64  `parquet:"dislikes"`
	Comments      int64  `parquet:"comments"`
	ETLTs         string `parquet:"etl_ts"`
}
