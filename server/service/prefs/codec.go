// Package prefs implements the preferences exchange core: the codec between
// a structured preference set and its flat blob form, and the one-time save
// key lifecycle that gates preference uploads.
package prefs

import (
	"fmt"
	"strings"
)

// Type tags understood by the legacy client. The codec carries tags opaquely
// and does not validate values against them; the list exists so callers can
// produce well-known tags without hardcoding strings.
const (
	TagBoolean    = "boolean"
	TagInteger    = "integer"
	TagDouble     = "double"
	TagString     = "string"
	TagIntList    = "intlist"
	TagColor      = "color"
	TagRectInt    = "rect.int"
	TagRectDouble = "rect.double"
)

const (
	groupSeparator = "\n\n"
	lineSeparator  = "\n"
)

// Line is a single preference entry: a name, a type tag and an unparsed value.
type Line struct {
	Name  string
	Tag   string
	Value string
}

// Group is a named, ordered collection of preference lines. The name is the
// preference type header of the group within the blob.
type Group struct {
	Type  string
	Lines []Line
}

// Set is an ordered sequence of groups. Group order and line order are part
// of the wire format and survive encode/decode round-trips.
type Set []Group

// MalformedLineError reports a blob line that cannot be split into
// name, tag and value.
type MalformedLineError struct {
	Group string
	Line  string
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("malformed preference line %q in group %q", e.Line, e.Group)
}

// DuplicateError reports a duplicated group type or a duplicated line name
// within one group.
type DuplicateError struct {
	Group string
	Name  string // empty when the group type itself is duplicated
}

func (e *DuplicateError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("duplicate preference group %q", e.Group)
	}
	return fmt.Sprintf("duplicate preference %q in group %q", e.Name, e.Group)
}

// Encode serializes the set into its canonical blob form: groups joined by a
// blank line, each group a type header followed by name=tag;value lines.
// An empty set encodes to an empty blob.
func Encode(set Set) []byte {
	if len(set) == 0 {
		return []byte{}
	}

	var sb strings.Builder
	for i, group := range set {
		if i > 0 {
			sb.WriteString(groupSeparator)
		}
		sb.WriteString(group.Type)
		for _, line := range group.Lines {
			sb.WriteString(lineSeparator)
			sb.WriteString(line.Name)
			sb.WriteString("=")
			sb.WriteString(line.Tag)
			sb.WriteString(";")
			sb.WriteString(line.Value)
		}
	}
	return []byte(sb.String())
}

// Decode parses a blob back into a structured set. Parsing is positional and
// deliberately lenient about content: each line is split on the first '=' and
// then on the first ';', so values may contain further '=' or ';' characters
// unescaped. A line missing either separator is a malformed-line error.
// Trailing newlines are tolerated because stored blobs carry the upload's
// final line terminator. An empty blob decodes to an empty set.
func Decode(blob []byte) (Set, error) {
	text := strings.TrimRight(string(blob), "\n")
	if text == "" {
		return Set{}, nil
	}

	set := Set{}
	seenGroups := make(map[string]bool)
	for _, chunk := range strings.Split(text, groupSeparator) {
		if chunk == "" {
			continue
		}

		lines := strings.Split(chunk, lineSeparator)
		group := Group{Type: lines[0]}
		if seenGroups[group.Type] {
			return nil, &DuplicateError{Group: group.Type}
		}
		seenGroups[group.Type] = true

		seenNames := make(map[string]bool)
		for _, raw := range lines[1:] {
			if raw == "" {
				continue
			}
			line, err := decodeLine(group.Type, raw)
			if err != nil {
				return nil, err
			}
			if seenNames[line.Name] {
				return nil, &DuplicateError{Group: group.Type, Name: line.Name}
			}
			seenNames[line.Name] = true
			group.Lines = append(group.Lines, line)
		}
		set = append(set, group)
	}
	return set, nil
}

func decodeLine(groupType, raw string) (Line, error) {
	name, rest, ok := strings.Cut(raw, "=")
	if !ok {
		return Line{}, &MalformedLineError{Group: groupType, Line: raw}
	}
	tag, value, ok := strings.Cut(rest, ";")
	if !ok {
		return Line{}, &MalformedLineError{Group: groupType, Line: raw}
	}
	return Line{Name: name, Tag: tag, Value: value}, nil
}
