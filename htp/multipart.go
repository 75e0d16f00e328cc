// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package htp

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/packetd/htpcore/internal/splitio"
)

// PartType is one of the five multipart part kinds.
type PartType int

const (
	PartUnknownType PartType = iota
	PartText
	PartFile
	PartPreamble
	PartEpilogue
)

// FileSource describes where an uploaded file object came from.
type FileSource int

const (
	FileSourceMultipart FileSource = iota
	FileSourceRequestBody
)

// File is an upload part.
type File struct {
	Source   FileSource
	Filename string
	Length   int64
	TmpPath  string
	tmp      *os.File
}

// Part is a single part of a multipart message body.
type Part struct {
	Type        PartType
	Name        string
	Value       string
	ContentType string
	Headers     *Headers
	File        *File
	RawLength   int

	repeats repeatTracker
}

// MultipartBody is the full result of parsing a multipart body.
type MultipartBody struct {
	Boundary      []byte
	BoundaryCount int
	Parts         []*Part
	Flags         Flags
}

// DiscoverBoundary locates the `boundary=` parameter in a Content-Type
// header value.
//
// Tolerates quoted values, trailing commas/semicolons, and a duplicated
// boundary= parameter (the latter sets HBoundaryInvalid). Validation:
// length 1..70; alphanumerics and '-' are allowed; the RFC-reserved set
// `'()+_,./:=?` is tolerated but flags UnusualBoundaryChar; anything else
// is invalid.
func DiscoverBoundary(contentType string) (boundary string, flags Flags, ok bool) {
	lower := strings.ToLower(contentType)
	if !strings.HasPrefix(strings.TrimSpace(lower), "multipart/form-data") {
		return "", 0, false
	}

	idx := strings.Index(lower, "boundary=")
	if idx < 0 {
		return "", 0, false
	}

	// Detect a duplicated boundary= parameter.
	if strings.Index(lower[idx+len("boundary="):], "boundary=") >= 0 {
		flags = flags.Set(HBoundaryInvalid)
	}

	rest := contentType[idx+len("boundary="):]
	rest = strings.TrimLeft(rest, " \t")

	if strings.HasPrefix(rest, `"`) {
		end := strings.IndexByte(rest[1:], '"')
		if end < 0 {
			flags = flags.Set(HBoundaryInvalid)
			return "", flags, false
		}
		boundary = rest[1 : end+1]
	} else {
		end := len(rest)
		for i, c := range rest {
			if c == ';' || c == ',' || c == ' ' || c == '\t' {
				end = i
				break
			}
		}
		boundary = rest[:end]
	}

	if len(boundary) < 1 || len(boundary) > 70 {
		return boundary, flags.Set(HBoundaryInvalid), false
	}

	for _, c := range boundary {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
		case strings.ContainsRune(`'()+_,./:=?`, c):
			flags = flags.Set(UnusualBoundaryChar)
		default:
			flags = flags.Set(HBoundaryInvalid)
		}
	}

	return boundary, flags, true
}

type partMode int

const (
	modeLine partMode = iota
	modeData
)

// MultipartParser streams `CRLF "--" boundary` matching and splits data
// into Parts.
//
// Each Feed call may straddle multiple chunks: a line with no terminating
// LF yet is buffered in pendingLine (it might still turn out to be, or
// contain, a boundary once the rest arrives) and reprocessed, prepended to
// the data, on the next call — this is what makes boundary detection
// agnostic to where the caller happens to split the input.
type MultipartParser struct {
	cfg    *Config
	body   *MultipartBody
	effBnd []byte // "CRLF--boundary"

	mode        partMode
	pendingLine []byte

	current      *Part
	seenFirstBnd bool
	fileCount    int
}

// NewMultipartParser creates a streaming multipart parser for boundary.
func NewMultipartParser(cfg *Config, boundary string) *MultipartParser {
	eff := append([]byte("\r\n--"), boundary...)
	body := &MultipartBody{Boundary: []byte(boundary)}

	p := &MultipartParser{cfg: cfg, body: body, effBnd: eff}
	p.startPart(PartPreamble)
	return p
}

func (p *MultipartParser) startPart(t PartType) {
	p.current = &Part{Type: t, Headers: NewHeaders(cfg64(p.cfg)), repeats: repeatTracker{}}
	p.mode = modeLine
	if t == PartPreamble || t == PartEpilogue {
		p.mode = modeData
	}
}

func cfg64(cfg *Config) int {
	if cfg == nil {
		return 64
	}
	return cfg.HeaderRepetitionLimit
}

// Feed consumes a chunk of body data, scanning line by line and attempting
// to match effBnd at every LF.
func (p *MultipartParser) Feed(chunk []byte) {
	data := chunk
	if len(p.pendingLine) > 0 {
		data = append(append([]byte{}, p.pendingLine...), chunk...)
		p.pendingLine = nil
	}

	r := splitio.NewReader(data)
	for {
		line, eof := r.ReadLine()
		if eof {
			return
		}

		if !bytes.HasSuffix(line, splitio.CharLF) {
			// No LF arrived yet in this chunk. A boundary always starts
			// with CRLF, so a line fragment with no LF can never be
			// confirmed (or ruled out) as a boundary; hold it for the
			// next Feed/Finish instead of consuming it as part data.
			p.pendingLine = append([]byte{}, line...)
			return
		}

		if !bytes.HasSuffix(line, splitio.CharCRLF) {
			p.body.Flags = p.body.Flags.Set(LFLine)
		}

		if idx := bytes.Index(line, []byte("--"+string(p.body.Boundary))); idx >= 0 && p.looksLikeBoundaryLine(idx) {
			p.onBoundary(line, idx)
			continue
		}

		p.consumeLine(line)
	}
}

// looksLikeBoundaryLine requires the boundary marker to occupy the start
// of the line (any preceding CRLF has already been consumed by the line
// scanner).
func (p *MultipartParser) looksLikeBoundaryLine(idx int) bool {
	return idx == 0
}

func (p *MultipartParser) onBoundary(line []byte, idx int) {
	p.body.BoundaryCount++
	p.finishCurrentPart()

	rest := line[idx+2+len(p.body.Boundary):]
	rest = splitio.Chomp(rest)

	if bytes.HasPrefix(rest, []byte("--")) {
		p.body.Flags = p.body.Flags.Set(SeenLastBoundary)
		p.startPart(PartEpilogue)
		p.seenFirstBnd = true
		return
	}

	if p.seenFirstBnd {
		// A new part after the terminating boundary: an evasion signal.
		p.body.Flags = p.body.Flags.Set(PartAfterLastBoundary)
	}
	p.startPart(PartUnknownType)
}

func (p *MultipartParser) finishCurrentPart() {
	if p.current == nil {
		return
	}
	if p.current.Type == PartUnknownType && p.current.Headers.Get("Content-Disposition") == nil && p.current.RawLength > 0 {
		p.current.Type = PartUnknownType
		p.body.Flags = p.body.Flags.Set(PartUnknown)
	}
	if p.current.File != nil && p.current.File.tmp != nil {
		_ = p.current.File.tmp.Close()
	}
	p.body.Parts = append(p.body.Parts, p.current)
	p.current = nil
}

func (p *MultipartParser) consumeLine(line []byte) {
	p.current.RawLength += len(line)

	if p.mode == modeData {
		p.appendData(line)
		return
	}

	if splitio.IsBlankLine(line) {
		p.mode = modeData
		p.afterHeaders()
		return
	}

	pl := ParseHeaderLine(line)
	if pl.Folding {
		p.body.Flags = p.body.Flags.Set(PartHeaderFolding)
		if p.current.Headers.Len() == 0 {
			return
		}
		p.current.Headers.AppendFold(pl.Value)
		return
	}
	p.current.Headers.Add(pl.Name, pl.Value, p.current.repeats)
}

func (p *MultipartParser) afterHeaders() {
	cd := p.current.Headers.Get("Content-Disposition")
	if cd == nil {
		p.body.Flags = p.body.Flags.Set(PartUnknown)
		p.current.Type = PartUnknownType
		return
	}

	name, filename := parseContentDisposition(cd.Value)
	p.current.Name = name

	if ct := p.current.Headers.Get("Content-Type"); ct != nil {
		p.current.ContentType = ct.Value
	}

	if filename != "" {
		p.current.Type = PartFile
		p.current.File = &File{Source: FileSourceMultipart, Filename: filename}
		if p.cfg != nil && p.cfg.ExtractRequestFiles && p.fileCount < p.cfg.ExtractRequestFilesLimit {
			p.openTempFile()
			p.fileCount++
		}
	} else {
		p.current.Type = PartText
	}
}

func (p *MultipartParser) openTempFile() {
	dir := p.cfg.TmpDir
	if dir == "" {
		dir = os.TempDir()
	}
	name := fmt.Sprintf("libhtp-multipart-file-%x", rand.Int31())
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return
	}
	p.current.File.tmp = f
	p.current.File.TmpPath = f.Name()
}

func (p *MultipartParser) appendData(line []byte) {
	if p.current.Type == PartFile && p.current.File != nil {
		// The CRLF terminating this line belongs to the CRLF-"--"-boundary
		// delimiter, not the file's content, so it is stripped the same
		// way the text-part Value below strips it.
		chomped := splitio.Chomp(line)
		if p.current.File.tmp != nil {
			n, _ := p.current.File.tmp.Write(chomped)
			p.current.File.Length += int64(n)
		} else {
			p.current.File.Length += int64(len(chomped))
		}
		return
	}

	if p.current.Type == PartPreamble {
		p.body.Flags = p.body.Flags.Set(HasPreamble)
	}
	if p.current.Type == PartEpilogue {
		p.body.Flags = p.body.Flags.Set(HasEpilogue)
	}
	p.current.Value += string(splitio.Chomp(line))
}

// Finish must be called once the final chunk has been fed; it flushes any
// pending line and closes out the unterminated part.
func (p *MultipartParser) Finish() *MultipartBody {
	if len(p.pendingLine) > 0 {
		line := p.pendingLine
		p.pendingLine = nil
		if idx := bytes.Index(line, []byte("--"+string(p.body.Boundary))); idx >= 0 && p.looksLikeBoundaryLine(idx) {
			p.onBoundary(line, idx)
		} else {
			p.consumeLine(line)
		}
	}
	p.finishCurrentPart()
	return p.body
}

// parseContentDisposition extracts the name/filename parameters from
// `form-data; name="x"; filename="y.txt"`, tolerating browser quirks in
// how \" and \\ are escaped.
func parseContentDisposition(value string) (name, filename string) {
	parts := strings.Split(value, ";")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		val := unquoteDisposition(strings.TrimSpace(kv[1]))

		switch key {
		case "name":
			name = val
		case "filename":
			filename = val
		}
	}
	return name, filename
}

func unquoteDisposition(v string) string {
	v = strings.Trim(v, `"`)
	v = strings.ReplaceAll(v, `\"`, `"`)
	v = strings.ReplaceAll(v, `\\`, `\`)
	return v
}
