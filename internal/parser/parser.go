package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"watchtrail/internal/core"
)

// ErrNoRecords is returned when an input holds no watch activity at all.
var ErrNoRecords = errors.New("no watch records found")

// Takeout activity page selectors
const (
	activitySelector = "div.outer-cell"
	headerSelector   = "div.header-cell"
	contentSelector  = "div.content-cell"
)

// Parser extracts watch records from Google Takeout exports
type Parser struct{}

// NewParser creates a new Parser instance
func NewParser() *Parser {
	return &Parser{}
}

// ParseTakeoutFile reads a Takeout watch-history.html file
func (p *Parser) ParseTakeoutFile(filePath string) ([]core.WatchRecord, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer f.Close()

	records, err := p.ParseTakeout(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filePath, err)
	}
	return records, nil
}

// ParseTakeout extracts one record per activity cell. Cells missing a content
// block are kept with whatever fields they do have.
func (p *Parser) ParseTakeout(r io.Reader) ([]core.WatchRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create goquery document: %w", err)
	}

	var records []core.WatchRecord
	doc.Find(activitySelector).Each(func(_ int, activity *goquery.Selection) {
		var rec core.WatchRecord

		if header := activity.Find(headerSelector).First(); header.Length() > 0 {
			rec.Service = strings.TrimSpace(header.Text())
		}

		content := activity.Find(contentSelector).First()
		if content.Length() > 0 {
			links := content.Find("a[href]")
			if video := links.Eq(0); video.Length() > 0 {
				rec.VideoTitle = strings.TrimSpace(video.Text())
				rec.VideoURL = p.hrefOf(video)
			}
			if channel := links.Eq(1); channel.Length() > 0 {
				rec.ChannelName = strings.TrimSpace(channel.Text())
				rec.ChannelURL = p.hrefOf(channel)
			}
			if texts := strippedStrings(content); len(texts) > 0 {
				rec.Timestamp = texts[len(texts)-1]
			}
		}

		records = append(records, rec)
	})

	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

// strippedStrings returns every non-blank text node under s, trimmed, in document order
func strippedStrings(s *goquery.Selection) []string {
	var out []string
	s.Contents().Each(func(_ int, node *goquery.Selection) {
		if goquery.NodeName(node) == "#text" {
			if text := strings.TrimSpace(node.Text()); text != "" {
				out = append(out, text)
			}
			return
		}
		out = append(out, strippedStrings(node)...)
	})
	return out
}

// LoadRecords reads a JSON array of watch records
func (p *Parser) LoadRecords(filePath string) ([]core.WatchRecord, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	var records []core.WatchRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode records from %s: %w", filePath, err)
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

// LoadAny picks the HTML or JSON reader by file extension
func (p *Parser) LoadAny(filePath string) ([]core.WatchRecord, error) {
	lower := strings.ToLower(filePath)
	if strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm") {
		return p.ParseTakeoutFile(filePath)
	}
	return p.LoadRecords(filePath)
}

// WriteRecords writes records as an indented JSON array
func WriteRecords(w io.Writer, records []core.WatchRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	return nil
}

// CorpusText is the text embedded for a record: title and channel joined by a space
func CorpusText(rec core.WatchRecord) string {
	return rec.VideoTitle + " " + rec.ChannelName
}

// hrefOf returns the normalized link target of an anchor
func (p *Parser) hrefOf(a *goquery.Selection) string {
	href := strings.TrimSpace(a.AttrOr("href", ""))
	if href == "" {
		return ""
	}
	return p.NormalizeURL(href)
}

// NormalizeURL removes tracking parameters and the fragment from a video or channel URL
func (p *Parser) NormalizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL // Return original if parsing fails
	}

	query := parsed.Query()
	trackingParams := []string{
		"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
		"feature", "si", "pp",
	}
	for _, param := range trackingParams {
		query.Del(param)
	}
	parsed.RawQuery = query.Encode()
	parsed.Fragment = ""

	return parsed.String()
}

// VideoID extracts the YouTube video id from a watch URL, a youtu.be link or
// an embed/shorts path. It returns "" when no id is present.
func VideoID(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	if v := parsed.Query().Get("v"); v != "" {
		return v
	}

	host := strings.TrimPrefix(parsed.Hostname(), "www.")
	path := strings.Trim(parsed.Path, "/")
	switch {
	case host == "youtu.be" && path != "":
		return strings.Split(path, "/")[0]
	case strings.HasPrefix(path, "embed/"), strings.HasPrefix(path, "shorts/"), strings.HasPrefix(path, "v/"):
		parts := strings.Split(path, "/")
		if len(parts) >= 2 {
			return parts[1]
		}
	}
	return ""
}
