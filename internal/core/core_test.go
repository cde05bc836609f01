package core

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestCombine(t *testing.T) {
	tests := []struct {
		name      string
		content   int
		time      int
		wantNoise bool
		wantStr   string
	}{
		{name: "both clustered", content: 0, time: 1, wantNoise: false, wantStr: "0_1"},
		{name: "content noise", content: NoiseLabel, time: 0, wantNoise: true, wantStr: "-1"},
		{name: "time noise", content: 3, time: NoiseLabel, wantNoise: true, wantStr: "-1"},
		{name: "both noise", content: NoiseLabel, time: NoiseLabel, wantNoise: true, wantStr: "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label := Combine(tt.content, tt.time)
			if label.IsNoise() != tt.wantNoise {
				t.Errorf("IsNoise() = %v, want %v", label.IsNoise(), tt.wantNoise)
			}
			if label.String() != tt.wantStr {
				t.Errorf("String() = %q, want %q", label.String(), tt.wantStr)
			}
		})
	}
}

func TestCompositeLabel_JSON(t *testing.T) {
	data, err := json.Marshal(Combine(2, 0))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `"2_0"` {
		t.Errorf("Expected \"2_0\", got %s", data)
	}

	data, err = json.Marshal(NoiseComposite)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != "-1" {
		t.Errorf("Expected -1 for noise, got %s", data)
	}

	var label CompositeLabel
	if err := json.Unmarshal([]byte(`"4_2"`), &label); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if label.Content != 4 || label.Time != 2 {
		t.Errorf("Expected 4_2, got %s", label)
	}

	if err := json.Unmarshal([]byte(`-1`), &label); err != nil {
		t.Fatalf("Unmarshal noise failed: %v", err)
	}
	if !label.IsNoise() {
		t.Errorf("Expected noise label, got %s", label)
	}

	if err := json.Unmarshal([]byte(`7`), &label); err == nil {
		t.Error("Expected error for a bare non-noise integer")
	}
}

func TestParseCompositeLabel_Invalid(t *testing.T) {
	for _, input := range []string{"", "3", "a_1", "1_b"} {
		if _, err := ParseCompositeLabel(input); err == nil {
			t.Errorf("Expected error for %q", input)
		}
	}
}

func TestClusteredRecord_Schema(t *testing.T) {
	record := ClusteredRecord{
		WatchRecord: WatchRecord{
			VideoTitle:  "Intro to Go",
			ChannelName: "Gophers",
			Timestamp:   "2024-01-02T03:04:05Z",
		},
		Observation: Observation{
			Index:          3,
			Text:           "Intro to Go Gophers",
			ContentVector:  []float64{0.5, 0.5},
			TimeValue:      1704164645,
			ClusterContent: 1,
			ClusterTime:    0,
			Combined:       Combine(1, 0),
		},
	}

	data, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	out := string(data)

	for _, key := range []string{`"content_vector"`, `"cluster_content":1`, `"time_value"`, `"cluster_time":0`, `"combined_cluster":"1_0"`, `"video_title":"Intro to Go"`} {
		if !strings.Contains(out, key) {
			t.Errorf("Expected %s in %s", key, out)
		}
	}
	if strings.Contains(out, "Intro to Go Gophers") {
		t.Errorf("Observation text should not be serialized: %s", out)
	}
}
