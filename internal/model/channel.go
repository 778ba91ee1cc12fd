package model

import "time"

// Channel is a YouTube channel with its cumulative statistics as reported by
// the Data API at fetch time.
type Channel struct {
	ID              string
	Name            string // lookup name from the configured channel list, may be empty
	Title           string
	Description     string
	CustomURL       string
	PublishedAt     string // RFC3339 as returned by the API
	Country         string
	ViewCount       int64
	SubscriberCount int64
	VideoCount      int64
}

// ChannelRef identifies a channel either by display name or by channel ID.
type ChannelRef struct {
	Name string `yaml:"name,omitempty"`
	ID   string `yaml:"id,omitempty"`
}

func (r ChannelRef) String() string {
	if r.ID != "" {
		return r.ID
	}
	return r.Name
}

// ChannelMetaRow is one row of the channel_md record set, keyed by channel_id.
type ChannelMetaRow struct {
	ChannelName string `parquet:"channel_name"`
	ChannelID   string `parquet:"channel_id"`
	Title       string `parquet:"title"`
	CustomURL   string `parquet:"customUrl"`
	PublishedAt string `parquet:"publishedAt"`
	Country     string `parquet:"country"`
	ETLTs       string `parquet:"etl_ts"`
}

// ChannelStatsRow is one row of the channel_stats record set, keyed by
// (channel_id, rptg_dt).
type ChannelStatsRow struct {
	ChannelID       string `parquet:"channel_id"`
	ReportingDate   string `parquet:"rptg_dt"`
	ViewCount       int64  `parquet:"viewCount"`
	SubscriberCount int64  `parquet:"subscriberCount"`
	VideoCount      int64  `parquet:"videoCount"`
	ETLTs           string `parquet:"etl_ts"`
}

// Stamp carries the reporting date and ETL timestamp shared by every row of
// one cycle.
type Stamp struct {
	At            time.Time
	ReportingDate string // 2006-01-02
	ETLTs         string // 2006-01-02 15:04:05
}

// NewStamp formats t the way the warehouse tables expect.
func NewStamp(t time.Time) Stamp {
	return Stamp{
		At:            t,
		ReportingDate: t.Format(time.DateOnly),
		ETLTs:         t.Format(time.DateTime),
	}
}
