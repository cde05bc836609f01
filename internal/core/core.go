package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// NoiseLabel is the cluster id reserved for points that belong to no cluster.
const NoiseLabel = -1

// WatchRecord represents one activity entry extracted from a watch-history export.
// Every field is optional; missing values are empty strings.
type WatchRecord struct {
	Service     string `json:"service,omitempty"`      // Header of the activity cell (e.g. "YouTube")
	VideoTitle  string `json:"video_title,omitempty"`  // Title of the watched video
	VideoURL    string `json:"video_url,omitempty"`    // Link to the watched video
	ChannelName string `json:"channel_name,omitempty"` // Name of the uploading channel
	ChannelURL  string `json:"channel_url,omitempty"`  // Link to the uploading channel
	Timestamp   string `json:"timestamp,omitempty"`    // Raw timestamp string as displayed in the export
}

// Observation is a WatchRecord prepared for clustering.
// Index is the positional id of the record in the input order.
type Observation struct {
	Index          int            `json:"-"`
	Text           string         `json:"-"`               // Text handed to the embedding provider
	ContentVector  []float64      `json:"content_vector"`  // Embedding of Text, immutable once produced
	TimeValue      float64        `json:"time_value"`      // Seconds since epoch, 0 when the timestamp was unparseable
	ClusterContent int            `json:"cluster_content"` // Stage 1 label
	ClusterTime    int            `json:"cluster_time"`    // Stage 2 label, local to the content cluster
	Combined       CompositeLabel `json:"combined_cluster"`
}

// ClusteredRecord is the persisted shape of one clustered activity entry.
type ClusteredRecord struct {
	WatchRecord
	Observation
}

// CompositeLabel pairs the content cluster with the time cluster found inside it.
type CompositeLabel struct {
	Content int
	Time    int
}

// NoiseComposite is the composite label carried by noise observations.
var NoiseComposite = CompositeLabel{Content: NoiseLabel, Time: NoiseLabel}

// Combine builds the composite label. The result is noise if either half is noise.
func Combine(content, time int) CompositeLabel {
	if content == NoiseLabel || time == NoiseLabel {
		return NoiseComposite
	}
	return CompositeLabel{Content: content, Time: time}
}

// IsNoise reports whether the label is the noise sentinel.
func (l CompositeLabel) IsNoise() bool {
	return l.Content == NoiseLabel || l.Time == NoiseLabel
}

// String returns "{content}_{time}", or "-1" for noise.
func (l CompositeLabel) String() string {
	if l.IsNoise() {
		return strconv.Itoa(NoiseLabel)
	}
	return fmt.Sprintf("%d_%d", l.Content, l.Time)
}

// MarshalJSON encodes noise as the integer -1 and everything else as "{content}_{time}".
func (l CompositeLabel) MarshalJSON() ([]byte, error) {
	if l.IsNoise() {
		return []byte(strconv.Itoa(NoiseLabel)), nil
	}
	return json.Marshal(l.String())
}

// UnmarshalJSON accepts either the noise integer or the "{content}_{time}" string.
func (l *CompositeLabel) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if n != NoiseLabel {
			return fmt.Errorf("invalid composite label %d", n)
		}
		*l = NoiseComposite
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid composite label: %w", err)
	}
	parsed, err := ParseCompositeLabel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseCompositeLabel parses the string form produced by CompositeLabel.String.
func ParseCompositeLabel(s string) (CompositeLabel, error) {
	if s == strconv.Itoa(NoiseLabel) {
		return NoiseComposite, nil
	}
	contentPart, timePart, ok := strings.Cut(s, "_")
	if !ok {
		return CompositeLabel{}, fmt.Errorf("invalid composite label %q", s)
	}
	content, err := strconv.Atoi(contentPart)
	if err != nil {
		return CompositeLabel{}, fmt.Errorf("invalid content id in %q: %w", s, err)
	}
	t, err := strconv.Atoi(timePart)
	if err != nil {
		return CompositeLabel{}, fmt.Errorf("invalid time id in %q: %w", s, err)
	}
	return Combine(content, t), nil
}

// WatchGroup collects the videos that share one composite label.
type WatchGroup struct {
	Label  string       `json:"label"`  // Composite label string, "-1" for the noise group
	Name   string       `json:"name"`   // Human-readable group name
	Color  string       `json:"color"`  // CSS color used by the viewer
	Videos []GroupVideo `json:"videos"` // Members in input order
}

// GroupSummary is the listing form of a WatchGroup, without its members.
type GroupSummary struct {
	Label string `json:"label"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Count int    `json:"count"`
}

// GroupVideo is the display form of a clustered record.
type GroupVideo struct {
	VideoID      string `json:"video_id"`
	Title        string `json:"title"`
	ChannelName  string `json:"channel_name"`
	Timestamp    string `json:"timestamp"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// StageSummary describes the outcome of one clustering stage.
type StageSummary struct {
	Points   int `json:"points"`   // Observations considered by the stage
	Clusters int `json:"clusters"` // Distinct non-noise labels
	Noise    int `json:"noise"`    // Observations labelled as noise
}

// RunSummary describes the outcome of a full two-stage run.
type RunSummary struct {
	RunID      string       `json:"run_id"`
	Content    StageSummary `json:"content"`
	Time       StageSummary `json:"time"`
	Groups     int          `json:"groups"`     // Content clusters clustered in stage 2
	Composite  int          `json:"composite"`  // Distinct non-noise composite labels
	Silhouette float64      `json:"silhouette"` // Stage 1 silhouette over non-noise points
}
