package pipeline

import (
	"watchtrail/internal/core"
	"watchtrail/internal/parser"
	"watchtrail/internal/render"
)

// ParserAdapter wraps internal/parser to implement RecordLoader
type ParserAdapter struct {
	parser *parser.Parser
}

func NewParserAdapter() *ParserAdapter {
	return &ParserAdapter{
		parser: parser.NewParser(),
	}
}

func (a *ParserAdapter) LoadRecords(path string) ([]core.WatchRecord, error) {
	return a.parser.LoadAny(path)
}

// JSONWriterAdapter wraps internal/render to implement ResultWriter
type JSONWriterAdapter struct{}

func NewJSONWriterAdapter() *JSONWriterAdapter {
	return &JSONWriterAdapter{}
}

func (a *JSONWriterAdapter) WriteResults(records []core.ClusteredRecord, outputPath string) (string, error) {
	return render.WriteClusteredFile(records, outputPath)
}
