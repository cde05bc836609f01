package handlers

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"watchtrail/internal/clustering"
	"watchtrail/internal/config"
	"watchtrail/internal/core"
)

const takeoutFixture = `<html><body><div class="mdl-grid">
<div class="outer-cell mdl-cell">
  <div class="header-cell mdl-cell"><p>YouTube</p></div>
  <div class="content-cell mdl-cell">Watched <a href="https://www.youtube.com/watch?v=abc123XYZ">Learning Go Generics</a><br><a href="https://www.youtube.com/channel/UC1">Go Channel</a><br>Jan 2, 2024, 3:04:05 PM UTC<br></div>
</div>
<div class="outer-cell mdl-cell">
  <div class="header-cell mdl-cell"><p>YouTube</p></div>
  <div class="content-cell mdl-cell">Watched <a href="https://www.youtube.com/watch?v=def456">Sourdough Basics</a><br><a href="https://www.youtube.com/channel/UC2">Bakery</a><br>Jan 3, 2024, 8:00:00 AM UTC<br></div>
</div>
</div></body></html>`

// runRoot executes the root command with a fresh configuration
func runRoot(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	config.Reset()
	t.Cleanup(config.Reset)
	cfgFile, logLevel = "", ""

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.Execute()
	return out.String(), err
}

func TestParseCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "watch-history.html")
	if err := os.WriteFile(input, []byte(takeoutFixture), 0644); err != nil {
		t.Fatal(err)
	}
	output := filepath.Join(dir, "out", "records.json")

	out, err := runRoot(t, "", "parse", input, "-o", output)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !strings.Contains(out, "Saved 2 records") {
		t.Errorf("unexpected output: %q", out)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	var records []core.WatchRecord
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("invalid records JSON: %v", err)
	}
	if len(records) != 2 || records[1].VideoTitle != "Sourdough Basics" || records[1].ChannelName != "Bakery" {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestParseCommand_Stdout(t *testing.T) {
	input := filepath.Join(t.TempDir(), "watch-history.html")
	if err := os.WriteFile(input, []byte(takeoutFixture), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := runRoot(t, "", "parse", input)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !strings.Contains(out, "Learning Go Generics") {
		t.Errorf("records missing from stdout: %q", out)
	}
}

func TestParseCommand_MissingFile(t *testing.T) {
	if _, err := runRoot(t, "", "parse", filepath.Join(t.TempDir(), "missing.html")); err == nil {
		t.Fatal("expected error for missing input")
	}
}

func TestApplyClusterFlags(t *testing.T) {
	cmd := NewClusterCmd()
	if err := cmd.ParseFlags([]string{
		"--min-cluster-size", "8",
		"--metric", "cosine",
		"--selection", "epsilon",
		"--epsilon", "0.25",
		"--time-min-samples", "2",
	}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}

	f := clusterFlags{minClusterSize: 8, metric: "cosine", selection: "epsilon", epsilon: 0.25, timeMinSamples: 2}
	base := clustering.DefaultTwoStageConfig()
	got, err := applyClusterFlags(base, cmd.Flags(), f)
	if err != nil {
		t.Fatalf("applyClusterFlags failed: %v", err)
	}

	if got.Content.MinClusterSize != 8 || got.Content.Metric != clustering.MetricCosine {
		t.Errorf("content = %+v", got.Content)
	}
	if got.Content.SelectionMethod != clustering.SelectionEpsilon || got.Content.SelectionEpsilon != 0.25 {
		t.Errorf("selection = %v %v", got.Content.SelectionMethod, got.Content.SelectionEpsilon)
	}
	if got.Time.MinSamples != 2 {
		t.Errorf("time min_samples = %d", got.Time.MinSamples)
	}
	// Unset flags keep the configured values
	if got.Content.MinSamples != base.Content.MinSamples || got.Time.MinClusterSize != base.Time.MinClusterSize {
		t.Errorf("unchanged fields overwritten: %+v", got)
	}
}

func TestApplyClusterFlags_Invalid(t *testing.T) {
	cmd := NewClusterCmd()
	if err := cmd.ParseFlags([]string{"--min-cluster-size", "0"}); err != nil {
		t.Fatal(err)
	}
	if _, err := applyClusterFlags(clustering.DefaultTwoStageConfig(), cmd.Flags(), clusterFlags{}); err == nil {
		t.Error("expected validation error for min_cluster_size 0")
	}

	cmd = NewClusterCmd()
	if err := cmd.ParseFlags([]string{"--selection", "leaf"}); err != nil {
		t.Fatal(err)
	}
	if _, err := applyClusterFlags(clustering.DefaultTwoStageConfig(), cmd.Flags(), clusterFlags{selection: "leaf"}); err == nil {
		t.Error("expected error for unknown selection method")
	}
}

func TestCacheCommands(t *testing.T) {
	t.Setenv("WATCHTRAIL_CACHE_DIRECTORY", t.TempDir())

	out, err := runRoot(t, "", "cache", "stats")
	if err != nil {
		t.Fatalf("cache stats failed: %v", err)
	}
	if !strings.Contains(out, "Embeddings cached: 0") {
		t.Errorf("unexpected stats output: %q", out)
	}

	out, err = runRoot(t, "n\n", "cache", "clear")
	if err != nil {
		t.Fatalf("cache clear failed: %v", err)
	}
	if !strings.Contains(out, "cancelled") {
		t.Errorf("expected clear to be cancelled, got %q", out)
	}

	out, err = runRoot(t, "", "cache", "clear", "--confirm")
	if err != nil {
		t.Fatalf("cache clear --confirm failed: %v", err)
	}
	if !strings.Contains(out, "Cache cleared successfully") {
		t.Errorf("unexpected clear output: %q", out)
	}

	out, err = runRoot(t, "", "cache", "cleanup", "--older-than", "1h")
	if err != nil {
		t.Fatalf("cache cleanup failed: %v", err)
	}
	if !strings.Contains(out, "Removed 0 embeddings") {
		t.Errorf("unexpected cleanup output: %q", out)
	}
}
