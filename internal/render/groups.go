package render

import (
	"fmt"
	"math"
	"sort"

	"watchtrail/internal/core"
	"watchtrail/internal/parser"
)

const (
	// NoiseGroupName names the group of records that belong to no cluster
	NoiseGroupName = "Unclustered"
	noiseColor     = "#6C757D"
	thumbnailURL   = "https://img.youtube.com/vi/%s/default.jpg"
	invalidVideoID = "invalid"
)

// BuildGroups collects records by composite label. Groups appear in the
// order their first member appears in records; members keep input order.
func BuildGroups(records []core.ClusteredRecord) []core.WatchGroup {
	index := make(map[string]int)
	var groups []core.WatchGroup

	for _, rec := range records {
		label := rec.Combined.String()
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, core.WatchGroup{
				Label: label,
				Name:  GroupName(rec.Combined),
				Color: GroupColor(rec.Combined),
			})
		}
		groups[i].Videos = append(groups[i].Videos, toGroupVideo(rec.WatchRecord))
	}

	return groups
}

func toGroupVideo(rec core.WatchRecord) core.GroupVideo {
	id := parser.VideoID(rec.VideoURL)
	if id == "" {
		id = invalidVideoID
	}
	return core.GroupVideo{
		VideoID:      id,
		Title:        rec.VideoTitle,
		ChannelName:  rec.ChannelName,
		Timestamp:    rec.Timestamp,
		ThumbnailURL: fmt.Sprintf(thumbnailURL, id),
	}
}

// GroupName is the display name of a composite label
func GroupName(label core.CompositeLabel) string {
	if label.IsNoise() {
		return NoiseGroupName
	}
	return "Cluster " + label.String()
}

// GroupColor spreads content clusters around the hue circle by the golden
// angle. Time clusters of one content cluster share a hue and vary in lightness.
func GroupColor(label core.CompositeLabel) string {
	if label.IsNoise() {
		return noiseColor
	}
	hue := math.Mod(float64(label.Content)*137.508, 360)
	lightness := 0.60 - 0.08*float64(label.Time%4)
	return hslToHex(hue, 0.70, lightness)
}

// hslToHex converts hue in degrees and saturation, lightness in [0,1] to #rrggbb
func hslToHex(h, s, l float64) string {
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	to8 := func(v float64) int { return int(math.Round((v + m) * 255)) }
	return fmt.Sprintf("#%02X%02X%02X", to8(r), to8(g), to8(b))
}

// Summaries lists groups by descending size, noise last; equal sizes keep group order
func Summaries(groups []core.WatchGroup) []core.GroupSummary {
	out := make([]core.GroupSummary, len(groups))
	for i, g := range groups {
		out[i] = core.GroupSummary{Label: g.Label, Name: g.Name, Color: g.Color, Count: len(g.Videos)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		iNoise, jNoise := out[i].Name == NoiseGroupName, out[j].Name == NoiseGroupName
		if iNoise != jNoise {
			return jNoise
		}
		return out[i].Count > out[j].Count
	})
	return out
}

// FindGroup returns the group with the given label
func FindGroup(groups []core.WatchGroup, label string) (core.WatchGroup, bool) {
	for _, g := range groups {
		if g.Label == label {
			return g, true
		}
	}
	return core.WatchGroup{}, false
}

// MostRecent returns up to limit videos sorted newest first. Videos with
// unparseable timestamps sort last. limit <= 0 returns all.
func MostRecent(videos []core.GroupVideo, limit int) []core.GroupVideo {
	out := append([]core.GroupVideo(nil), videos...)
	sort.SliceStable(out, func(i, j int) bool {
		return parser.ParseTimestamp(out[i].Timestamp) > parser.ParseTimestamp(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
