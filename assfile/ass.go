// Package assfile implements reading and writing of Advanced SubStation
// Alpha (.ass) subtitle files for dialogue translation.
//
// A document is kept as raw lines. Only the text payload of event lines
// beginning with the "Dialogue:" prefix is ever rewritten; script metadata,
// style definitions, Format: lines and Comment: events round-trip byte for
// byte. Line terminators are normalized to the flavor detected on input.
package assfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// DialoguePrefix is the structural token that opens an event line carrying
// translatable text. Matching is exact and case-sensitive; a line with
// leading whitespace is not an event.
const DialoguePrefix = "Dialogue:"

// fieldCount is the fixed number of comma-delimited fields in a dialogue
// event line. The final field is the text payload and may itself contain
// commas, so splitting is always bounded.
const fieldCount = 10

// hardBreak is the ASS control sequence for a forced line break inside
// dialogue text.
const hardBreak = `\N`

// BreakMarker is the plain-text stand-in for hardBreak used while dialogue
// text travels through a translation prompt.
const BreakMarker = "[br]"

const utf8BOM = "\xef\xbb\xbf"

// Line is one dialogue event together with its position in the document.
type Line struct {
	// Index is the zero-based position of the event in Document.Lines.
	Index int
	// Raw is the full event line including the Dialogue: prefix.
	Raw string
}

// Document is a subtitle file held as raw lines plus enough formatting
// detail (byte order mark, newline flavor) to write it back unchanged.
type Document struct {
	// Lines are the file's lines without terminators.
	Lines []string
	// Newline is the detected line terminator, "\n" or "\r\n".
	Newline string
	// BOM records whether the file opened with a UTF-8 byte order mark.
	BOM bool
}

// Parse reads a subtitle document from r.
func Parse(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read subtitle data: %w", err)
	}

	doc := &Document{Newline: "\n"}
	content := string(data)
	if strings.HasPrefix(content, utf8BOM) {
		doc.BOM = true
		content = content[len(utf8BOM):]
	}
	if i := strings.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		doc.Newline = "\r\n"
	}
	if content == "" {
		return doc, nil
	}

	lines := strings.Split(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	doc.Lines = lines
	return doc, nil
}

// ParseFile reads a subtitle document from path.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// Write serializes the document to w using its original byte order mark
// and newline flavor. The final line is always terminated.
func (d *Document) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if d.BOM {
		if _, err := bw.WriteString(utf8BOM); err != nil {
			return err
		}
	}
	nl := d.Newline
	if nl == "" {
		nl = "\n"
	}
	for _, line := range d.Lines {
		if _, err := bw.WriteString(line); err != nil {
			return err
		}
		if _, err := bw.WriteString(nl); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile serializes the document to path, replacing any existing file.
func (d *Document) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := d.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// IsDialogue reports whether line is a dialogue event.
func IsDialogue(line string) bool {
	return strings.HasPrefix(line, DialoguePrefix)
}

// Dialogues returns the document's dialogue events in order, each with its
// line index so edited text can be put back exactly where it came from.
func (d *Document) Dialogues() []Line {
	var events []Line
	for i, line := range d.Lines {
		if IsDialogue(line) {
			events = append(events, Line{Index: i, Raw: line})
		}
	}
	return events
}

// Stats returns the total line count and the dialogue event count.
func (d *Document) Stats() (lines, dialogues int) {
	lines = len(d.Lines)
	for _, line := range d.Lines {
		if IsDialogue(line) {
			dialogues++
		}
	}
	return lines, dialogues
}

// Text extracts the text payload of a dialogue event line: the tenth
// comma-delimited field. Commas inside the payload are preserved because
// the split is bounded at ten fields. A malformed line with fewer fields
// yields "" rather than an error so one bad event cannot stop a job.
func Text(line string) string {
	parts := strings.SplitN(line, ",", fieldCount)
	if len(parts) < fieldCount {
		return ""
	}
	return parts[fieldCount-1]
}

// WithText returns the dialogue event line with its text payload replaced.
// The nine metadata fields are carried over untouched. A malformed line
// with fewer than ten fields is returned unchanged.
func WithText(line, text string) string {
	parts := strings.SplitN(line, ",", fieldCount)
	if len(parts) < fieldCount {
		return line
	}
	parts[fieldCount-1] = text
	return strings.Join(parts, ",")
}

// EncodeBreaks replaces ASS hard line breaks with BreakMarker so the text
// survives a round trip through an LLM prompt. Brace-delimited override
// tags such as {\i1} are left in place; their preservation is requested in
// the prompt instruction instead.
func EncodeBreaks(text string) string {
	return strings.ReplaceAll(text, hardBreak, BreakMarker)
}

// DecodeBreaks restores ASS hard line breaks from BreakMarker.
func DecodeBreaks(text string) string {
	return strings.ReplaceAll(text, BreakMarker, hardBreak)
}
