package bundle

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"bfiles/internal/content"
	"bfiles/internal/textutil"
)

// ParseErrorKind classifies a hard parse failure.
type ParseErrorKind int

const (
	MalformedHeader ParseErrorKind = iota + 1
	MalformedEntry
	MissingBOF
	MissingEOF
	BadEncoding
)

var parseErrorNames = map[ParseErrorKind]string{
	MalformedHeader: "malformed header",
	MalformedEntry:  "malformed entry header",
	MissingBOF:      "missing BOF marker",
	MissingEOF:      "missing EOF marker",
	BadEncoding:     "undecodable bundle",
}

func (k ParseErrorKind) String() string { return parseErrorNames[k] }

// ParseError aborts the whole parse. Line is 1-based, 0 when unknown.
type ParseError struct {
	Kind ParseErrorKind
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse bundle: line %d: %s: %s", e.Line, e.Kind, e.Msg)
	}
	return fmt.Sprintf("parse bundle: %s: %s", e.Kind, e.Msg)
}

// Header is the bundle preamble.
type Header struct {
	Name      string
	Generated string
	Config    map[string]string
	Comment   string
}

// ParsedEntry is one entry as read back from a bundle.
type ParsedEntry struct {
	Num        int
	RelPath    string
	Metadata   map[string]string
	Content    []byte
	HasContent bool
	IsChunk    bool
	ChunkIndex int
	ChunkTotal int
	Op         content.Operation
	Line       int
}

// Size returns the declared size, or -1 when it is missing or malformed.
func (e ParsedEntry) Size() int64 {
	n, err := strconv.ParseInt(e.Metadata[KeySize], 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// OverlapPrev returns the declared overlap_prev, 0 when absent.
func (e ParsedEntry) OverlapPrev() int {
	n, err := strconv.Atoi(e.Metadata[KeyOverlapPrev])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

var (
	entryLineRE = regexp.MustCompile(`^###\s+FILE\s+(\d+):\s*(.+?)\s*(?:\(Chunk\s+(\d+)/(\d+)\))?\s*\|\s*(.+?)\s*###$`)
	startLineRE = regexp.MustCompile(`^--- START OF BFILE (.+) ---$`)
	endLineRE   = regexp.MustCompile(`^--- END OF BFILE (.+) ---$`)
)

// Parser reads a bundle held in memory.
type Parser struct {
	Logger *log.Logger

	lines []string
	pos   int
}

// Parse decodes data or fails as a whole. On success the entries are in
// bundle order.
func Parse(data []byte, logger *log.Logger) (Header, []ParsedEntry, error) {
	p := &Parser{Logger: logger}
	return p.Parse(data)
}

// Parse decodes data.
func (p *Parser) Parse(data []byte) (Header, []ParsedEntry, error) {
	if p.Logger == nil {
		p.Logger = log.New(io.Discard)
	}
	text, fallbacks, err := textutil.DecodeLines(data)
	if err != nil {
		return Header{}, nil, &ParseError{Kind: BadEncoding, Msg: err.Error()}
	}
	if fallbacks > 0 {
		p.Logger.Warn("bundle has lines that are not valid UTF-8, read as latin-1", "lines", fallbacks)
	}
	p.lines = splitLines(text)
	p.pos = 0

	hdr, err := p.header()
	if err != nil {
		return Header{}, nil, err
	}
	var entries []ParsedEntry
	for p.pos < len(p.lines) {
		line := strings.TrimSpace(p.lines[p.pos])
		if line == "" {
			p.pos++
			continue
		}
		if line == SummaryStart || endLineRE.MatchString(line) {
			break
		}
		e, err := p.entry(line)
		if err != nil {
			return Header{}, nil, err
		}
		entries = append(entries, e)
	}
	p.Logger.Debug("parsed bundle", "name", hdr.Name, "entries", len(entries))
	return hdr, entries, nil
}

// splitLines cuts text after every "\n", keeping terminators.
func splitLines(text []byte) []string {
	var out []string
	for len(text) > 0 {
		i := bytes.IndexByte(text, '\n')
		if i < 0 {
			out = append(out, string(text))
			break
		}
		out = append(out, string(text[:i+1]))
		text = text[i+1:]
	}
	return out
}

func (p *Parser) peek() (string, bool) {
	if p.pos >= len(p.lines) {
		return "", false
	}
	return strings.TrimSpace(p.lines[p.pos]), true
}

func (p *Parser) header() (Header, error) {
	if l, ok := p.peek(); ok && strings.HasPrefix(l, "Attention:") {
		p.pos++
	}
	if l, ok := p.peek(); ok && strings.HasPrefix(l, "Parse and analyze") {
		p.pos++
	}
	if l, ok := p.peek(); ok && l == "" {
		p.pos++
	}
	l, ok := p.peek()
	if !ok {
		return Header{}, &ParseError{Kind: MalformedHeader, Msg: "no start marker"}
	}
	m := startLineRE.FindStringSubmatch(l)
	if m == nil {
		return Header{}, &ParseError{Kind: MalformedHeader, Line: p.pos + 1, Msg: "expected start marker"}
	}
	hdr := Header{Name: m[1], Config: map[string]string{}}
	p.pos++

	for ; p.pos < len(p.lines); p.pos++ {
		l := strings.TrimSpace(p.lines[p.pos])
		switch {
		case l == HeaderEnd:
			p.pos++
			if next, ok := p.peek(); ok && next == "" {
				p.pos++
			}
			return hdr, nil
		case strings.HasPrefix(l, strings.TrimSpace(GeneratedPrefix)):
			hdr.Generated = strings.TrimSpace(strings.TrimPrefix(l, strings.TrimSpace(GeneratedPrefix)))
		case strings.HasPrefix(l, strings.TrimSpace(ConfigPrefix)):
			for _, item := range strings.Split(strings.TrimPrefix(l, strings.TrimSpace(ConfigPrefix)), ",") {
				if k, v, ok := strings.Cut(item, "="); ok {
					hdr.Config[strings.TrimSpace(k)] = strings.TrimSpace(v)
				}
			}
		case strings.HasPrefix(l, strings.TrimSpace(CommentPrefix)):
			hdr.Comment = strings.TrimSpace(strings.TrimPrefix(l, strings.TrimSpace(CommentPrefix)))
		}
	}
	return Header{}, &ParseError{Kind: MalformedHeader, Msg: "header separator not found"}
}

// ParseMetadata splits "k=v; k=v". A bare key maps to "".
func ParseMetadata(s string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if !ok {
			out[k] = ""
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}

// metadataOnly reports whether entries with op are written without a block.
func metadataOnly(op content.Operation) bool {
	switch op {
	case content.OpDuplicate, content.OpError, content.OpExcluded, content.OpSkipped:
		return true
	}
	return false
}

func (p *Parser) entry(line string) (ParsedEntry, error) {
	lineNo := p.pos + 1
	m := entryLineRE.FindStringSubmatch(line)
	if m == nil {
		return ParsedEntry{}, &ParseError{Kind: MalformedEntry, Line: lineNo, Msg: truncate(line, 100)}
	}
	num, _ := strconv.Atoi(m[1])
	e := ParsedEntry{
		Num:      num,
		RelPath:  strings.TrimSpace(m[2]),
		Metadata: ParseMetadata(m[5]),
		Line:     lineNo,
	}
	if m[3] != "" {
		e.IsChunk = true
		e.ChunkIndex, _ = strconv.Atoi(m[3])
		e.ChunkTotal, _ = strconv.Atoi(m[4])
	}
	op, known := content.ParseOperation(e.Metadata[KeyOp])
	if known {
		e.Op = op
	}
	p.pos++

	next, ok := p.peek()
	if !ok || next != BOF {
		if known && metadataOnly(op) {
			return e, nil
		}
		return ParsedEntry{}, &ParseError{Kind: MissingBOF, Line: p.pos + 1, Msg: e.RelPath}
	}
	p.pos++

	var body strings.Builder
	closed := false
	for ; p.pos < len(p.lines); p.pos++ {
		raw := p.lines[p.pos]
		if strings.TrimSpace(raw) == EOF {
			closed = true
			break
		}
		body.WriteString(raw)
	}
	if !closed {
		return ParsedEntry{}, &ParseError{Kind: MissingEOF, Line: lineNo, Msg: e.RelPath}
	}
	p.pos++
	if l, ok := p.peek(); ok && l == "" {
		p.pos++
	}

	e.HasContent = true
	e.Content = []byte(body.String())
	if e.Op == content.OpEmpty && string(e.Content) == "\n" {
		e.Content = nil
	}
	return e, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
