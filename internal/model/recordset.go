package model

import (
	"fmt"
	"time"
)

// RecordSet names one of the four entities handled end-to-end as an
// independent unit.
type RecordSet string

const (
	ChannelMeta  RecordSet = "channel_md"
	ChannelStats RecordSet = "channel_stats"
	VideoMeta    RecordSet = "video_md"
	VideoStats   RecordSet = "video_stats"
)

// RecordSets lists every record set in export order.
var RecordSets = []RecordSet{ChannelMeta, ChannelStats, VideoMeta, VideoStats}

// ParseRecordSet validates a record set name.
func ParseRecordSet(s string) (RecordSet, error) {
	for _, rs := range RecordSets {
		if string(rs) == s {
			return rs, nil
		}
	}
	return "", fmt.Errorf("unknown record set %q", s)
}

// label is the object-storage prefix and file label of the record set.
func (r RecordSet) label() string {
	switch r {
	case ChannelStats:
		return "channel"
	case VideoStats:
		return "video"
	default:
		return string(r)
	}
}

// Prefix is the directory the record set's files are written under,
// relative to the export base prefix.
func (r RecordSet) Prefix() string {
	return r.label()
}

// FileName returns the extract file name for a cycle started at ts.
func (r RecordSet) FileName(ts time.Time) string {
	return fmt.Sprintf("%s_data_%d.parquet", r.label(), ts.Unix())
}

// Snapshot holds the deduplicated rows of one extraction cycle.
type Snapshot struct {
	Stamp        Stamp
	ChannelMeta  []ChannelMetaRow
	ChannelStats []ChannelStatsRow
	VideoMeta    []VideoMetaRow
	VideoStats   []VideoStatsRow
}

// Len returns the row count of a record set.
func (s *Snapshot) Len(rs RecordSet) int {
	switch rs {
	case ChannelMeta:
		return len(s.ChannelMeta)
	case ChannelStats:
		return len(s.ChannelStats)
	case VideoMeta:
		return len(s.VideoMeta)
	case VideoStats:
		return len(s.VideoStats)
	}
	return 0
}
