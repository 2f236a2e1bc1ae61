// Package sourcemap generates revision 3 source maps for the line-preserving
// transforms of the bundled modules.
package sourcemap

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Map is the JSON form of a revision 3 source map.
type Map struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	SourceRoot     string   `json:"sourceRoot,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

type segment struct {
	genColumn  int
	source     int
	origLine   int
	origColumn int
}

// Generator accumulates mappings from generated positions to original ones.
// Lines and columns are zero-based.
type Generator struct {
	file     string
	sources  []string
	contents []string
	index    map[string]int
	lines    map[int][]segment
	maxLine  int
}

// NewGenerator creates a Generator for the generated file named file.
func NewGenerator(file string) *Generator {
	return &Generator{file: file, index: make(map[string]int), lines: make(map[int][]segment), maxLine: -1}
}

// AddSource registers an original source and returns its index. Adding the
// same name again returns the existing index.
func (g *Generator) AddSource(name string, content []byte) int {
	if i, ok := g.index[name]; ok {
		return i
	}
	i := len(g.sources)
	g.index[name] = i
	g.sources = append(g.sources, name)
	g.contents = append(g.contents, string(content))
	return i
}

// Map records that generated position (genLine, genColumn) comes from
// (origLine, origColumn) of the source with index source.
func (g *Generator) Map(genLine, genColumn, source, origLine, origColumn int) {
	g.lines[genLine] = append(g.lines[genLine], segment{
		genColumn:  genColumn,
		source:     source,
		origLine:   origLine,
		origColumn: origColumn,
	})
	g.maxLine = max(g.maxLine, genLine)
}

// MapLine maps the start of a generated line to the start of an original line.
func (g *Generator) MapLine(genLine, source, origLine int) {
	g.Map(genLine, 0, source, origLine, 0)
}

// Mappings returns the VLQ-encoded mappings string.
func (g *Generator) Mappings() string {
	var b strings.Builder
	prevSource, prevOrigLine, prevOrigColumn := 0, 0, 0
	for line := 0; line <= g.maxLine; line++ {
		if line > 0 {
			b.WriteByte(';')
		}
		segs := append([]segment(nil), g.lines[line]...)
		sort.SliceStable(segs, func(i, j int) bool { return segs[i].genColumn < segs[j].genColumn })
		prevGenColumn := 0
		for i, s := range segs {
			if i > 0 {
				b.WriteByte(',')
			}
			writeVLQ(&b, s.genColumn-prevGenColumn)
			writeVLQ(&b, s.source-prevSource)
			writeVLQ(&b, s.origLine-prevOrigLine)
			writeVLQ(&b, s.origColumn-prevOrigColumn)
			prevGenColumn, prevSource, prevOrigLine, prevOrigColumn = s.genColumn, s.source, s.origLine, s.origColumn
		}
	}
	return b.String()
}

// Build returns the complete map.
func (g *Generator) Build() *Map {
	return &Map{
		Version:        3,
		File:           g.file,
		Sources:        append([]string{}, g.sources...),
		SourcesContent: append([]string(nil), g.contents...),
		Names:          []string{},
		Mappings:       g.Mappings(),
	}
}

// MarshalJSON encodes the map built so far.
func (g *Generator) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Build())
}

const base64Digits = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

func writeVLQ(b *strings.Builder, v int) {
	var vlq int
	if v < 0 {
		vlq = (-v << 1) | 1
	} else {
		vlq = v << 1
	}
	for {
		digit := vlq & 31
		vlq >>= 5
		if vlq > 0 {
			digit |= 32
		}
		b.WriteByte(base64Digits[digit])
		if vlq == 0 {
			return
		}
	}
}

// Comment returns the trailing reference to a map file, in CSS comment
// syntax when css is true and JavaScript line comment syntax otherwise.
func Comment(mapURL string, css bool) string {
	if css {
		return fmt.Sprintf("/*# sourceMappingURL=%s */", mapURL)
	}
	return "//# sourceMappingURL=" + mapURL
}
