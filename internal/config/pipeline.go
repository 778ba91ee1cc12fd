package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/subhajitsr/data-assignment-SPH/internal/etlerr"
	"github.com/subhajitsr/data-assignment-SPH/internal/loader"
	"github.com/subhajitsr/data-assignment-SPH/internal/model"
	"github.com/subhajitsr/data-assignment-SPH/internal/sqlgen"
	"github.com/subhajitsr/data-assignment-SPH/internal/youtube"
)

// Pipeline is the YAML pipeline file: which channels to extract and how each
// record set is loaded.
type Pipeline struct {
	WindowDays int                             `yaml:"window_days"`
	PageSize   int64                           `yaml:"page_size"`
	Channels   []model.ChannelRef              `yaml:"channels"`
	Tables     map[model.RecordSet]TableConfig `yaml:"tables"`
}

// TableConfig is one table pair as written in the pipeline file.
type TableConfig struct {
	Schema       string   `yaml:"schema,omitempty"`
	Stage        string   `yaml:"stage"`
	StagingTable string   `yaml:"staging_table"`
	CoreTable    string   `yaml:"core_table"`
	LoadType     string   `yaml:"load_type,omitempty"`
	MergeKeys    []string `yaml:"merge_keys,omitempty"`
	Fields       FieldMap `yaml:"fields"`
}

// FieldMap maps source field to staging column and keeps file order, which
// is the COPY column order.
type FieldMap []sqlgen.FieldMapping

func (m *FieldMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: fields must be a mapping of source field to column", node.Line)
	}
	out := make(FieldMap, 0, len(node.Content)/2)
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: field mapping entries must be scalars", k.Line)
		}
		if seen[k.Value] {
			return fmt.Errorf("line %d: duplicate source field %q", k.Line, k.Value)
		}
		seen[k.Value] = true
		out = append(out, sqlgen.FieldMapping{Field: k.Value, Column: v.Value})
	}
	*m = out
	return nil
}

func (m FieldMap) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range m {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: f.Field},
			&yaml.Node{Kind: yaml.ScalarNode, Value: f.Column},
		)
	}
	return node, nil
}

// LoadPipeline returns the built-in pipeline overlaid with the file at path.
// An empty path yields the defaults. Table pairs without a schema use
// defaultSchema.
func LoadPipeline(path, defaultSchema string) (*Pipeline, error) {
	p := DefaultPipeline()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, etlerr.Wrap(etlerr.ErrConfiguration, "load_pipeline", path, err)
		}
		if err := p.decode(data); err != nil {
			return nil, etlerr.Wrap(etlerr.ErrConfiguration, "load_pipeline", path, err)
		}
	}
	for rs, t := range p.Tables {
		if t.Schema == "" {
			t.Schema = defaultSchema
			p.Tables[rs] = t
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks every record set has a usable table pair.
func (p *Pipeline) Validate() error {
	if p.WindowDays <= 0 {
		return etlerr.New(etlerr.ErrConfiguration, "validate_pipeline", "window_days", "must be positive, got %d", p.WindowDays)
	}
	if p.PageSize <= 0 || p.PageSize > youtube.MaxPageSize {
		return etlerr.New(etlerr.ErrConfiguration, "validate_pipeline", "page_size", "must be between 1 and %d, got %d", youtube.MaxPageSize, p.PageSize)
	}
	if len(p.Channels) == 0 {
		return etlerr.New(etlerr.ErrConfiguration, "validate_pipeline", "channels", "at least one channel is required")
	}
	for _, ref := range p.Channels {
		if ref.Name == "" && ref.ID == "" {
			return etlerr.New(etlerr.ErrInsufficientInput, "validate_pipeline", "channels", "either channel name or channel id needs to be provided")
		}
	}
	for rs := range p.Tables {
		if _, err := model.ParseRecordSet(string(rs)); err != nil {
			return etlerr.Wrap(etlerr.ErrConfiguration, "validate_pipeline", "tables", err)
		}
	}
	for _, rs := range model.RecordSets {
		t, ok := p.Tables[rs]
		if !ok {
			return etlerr.New(etlerr.ErrConfiguration, "validate_pipeline", string(rs), "no table pair configured")
		}
		d, err := sqlgen.ParseDiscipline(t.LoadType)
		if err != nil {
			return etlerr.Wrap(etlerr.ErrConfiguration, "validate_pipeline", string(rs), err)
		}
		if d == sqlgen.Merge && len(t.MergeKeys) == 0 {
			return etlerr.New(etlerr.ErrConfiguration, "validate_pipeline", string(rs), "merge_keys must be provided for MERGE load type")
		}
		if len(t.Fields) == 0 {
			return etlerr.New(etlerr.ErrConfiguration, "validate_pipeline", string(rs), "fields must map at least one column")
		}
	}
	return nil
}

// Pairs converts the table configuration into loader pairs. Call Validate
// first.
func (p *Pipeline) Pairs() map[model.RecordSet]loader.TablePair {
	out := make(map[model.RecordSet]loader.TablePair, len(p.Tables))
	for rs, t := range p.Tables {
		d, _ := sqlgen.ParseDiscipline(t.LoadType)
		out[rs] = loader.TablePair{
			Schema:       t.Schema,
			Stage:        t.Stage,
			StagingTable: t.StagingTable,
			CoreTable:    t.CoreTable,
			Fields:       []sqlgen.FieldMapping(t.Fields),
			Discipline:   d,
			MergeKeys:    t.MergeKeys,
		}
	}
	return out
}

// Encode renders the pipeline as YAML.
func (p *Pipeline) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return err
	}
	return enc.Close()
}

// DefaultPipeline is the hourly Singapore news channel load.
func DefaultPipeline() *Pipeline {
	return &Pipeline{
		WindowDays: 365,
		PageSize:   50,
		Channels: []model.ChannelRef{
			{Name: "straitstimesonline"},
			{Name: "BeritaHarianSG1957"},
			{Name: "Tamil_Murasu"},
			{Name: "TheBusinessTimes"},
			{Name: "zaobaodotsg"},
		},
		Tables: map[model.RecordSet]TableConfig{
			model.ChannelMeta: {
				Stage:        "stg_yt_channel_md",
				StagingTable: "tbl_stg_yt_channel_md",
				CoreTable:    "tbl_yt_channel_md",
				LoadType:     string(sqlgen.Full),
				Fields: fields(
					"channel_name", "channel_name",
					"channel_id", "channel_id",
					"title", "title",
					"customUrl", "custom_url",
					"publishedAt", "published_at",
					"country", "country",
					"etl_ts", "etl_ts",
				),
			},
			model.ChannelStats: {
				Stage:        "stg_yt_channel_stats",
				StagingTable: "tbl_stg_yt_channel_stats",
				CoreTable:    "tbl_yt_channel_stats",
				LoadType:     string(sqlgen.Merge),
				MergeKeys:    []string{"channel_id", "rptg_dt"},
				Fields: fields(
					"channel_id", "channel_id",
					"rptg_dt", "rptg_dt",
					"viewCount", "view_count",
					"subscriberCount", "subscriber_count",
					"videoCount", "video_count",
					"etl_ts", "etl_ts",
				),
			},
			model.VideoMeta: {
				Stage:        "stg_yt_video_md",
				StagingTable: "tbl_stg_yt_video_md",
				CoreTable:    "tbl_yt_video_md",
				LoadType:     string(sqlgen.Merge),
				MergeKeys:    []string{"id"},
				Fields: fields(
					"id", "id",
					"channel_id", "channel_id",
					"title", "title",
					"url", "url",
					"publishedAt", "published_at",
					"etl_ts", "etl_ts",
				),
			},
			model.VideoStats: {
				Stage:        "stg_yt_video_stats",
				StagingTable: "tbl_stg_yt_video_stats",
				CoreTable:    "tbl_yt_video_stats",
				LoadType:     string(sqlgen.Merge),
				MergeKeys:    []string{"id", "rptg_dt"},
				Fields: fields(
					"id", "id",
					"channel_id", "channel_id",
					"rptg_dt", "rptg_dt",
					"views", "view_count",
					"likes", "like_count",
					"dislikes", "dislike_count",
					"comments", "comment_count",
					"etl_ts", "etl_ts",
				),
			},
		},
	}
}

func fields(pairs ...string) FieldMap {
	out := make(FieldMap, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, sqlgen.FieldMapping{Field: pairs[i], Column: pairs[i+1]})
	}
	return out
}

// String renders the pipeline for logs.
func (p *Pipeline) String() string {
	var b strings.Builder
	for _, rs := range model.RecordSets {
		t := p.Tables[rs]
		fmt.Fprintf(&b, "%s=%s.%s(%s) ", rs, t.Schema, t.CoreTable, t.LoadType)
	}
	return strings.TrimSpace(b.String())
}
