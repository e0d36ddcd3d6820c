package metalog

import (
	"fmt"
	"strconv"
	"strings"
)

// EncodeLine renders r as one comma-space-separated log line:
//
//	<type>, <inode>, <mode>, <atime>, <ctime>, <mtime>, <size>, "<owner>",
//	"<group>", <uid>, <gid>, "<path>", "<link>", "<b64hash>", "<b64hash>", …
func EncodeLine(r Record) string {
	var b strings.Builder
	fields := []string{
		r.Type,
		strconv.FormatUint(r.Inode, 10),
		strconv.FormatUint(uint64(r.Mode), 10),
		strconv.FormatInt(r.Atime, 10),
		strconv.FormatInt(r.Ctime, 10),
		strconv.FormatInt(r.Mtime, 10),
		strconv.FormatInt(r.Size, 10),
		quote(r.Owner),
		quote(r.Group),
		strconv.FormatUint(uint64(r.UID), 10),
		strconv.FormatUint(uint64(r.GID), 10),
		quote(r.Path),
		quote(r.Link),
	}
	for _, h := range r.BlockList {
		fields = append(fields, quote(h))
	}
	b.WriteString(strings.Join(fields, ", "))
	b.WriteByte('\n')
	return b.String()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return strings.ReplaceAll(s, `\"`, `"`)
}

// ParseLine parses one log line back into a Record.
func ParseLine(line string) (Record, error) {
	fields := splitFields(line)
	if len(fields) < 13 {
		return Record{}, fmt.Errorf("metalog: line has %d fields, want at least 13", len(fields))
	}

	inode, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("metalog: parse inode: %w", err)
	}
	mode, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 32)
	if err != nil {
		return Record{}, fmt.Errorf("metalog: parse mode: %w", err)
	}
	atime, err := strconv.ParseInt(strings.TrimSpace(fields[3]), 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("metalog: parse atime: %w", err)
	}
	ctime, err := strconv.ParseInt(strings.TrimSpace(fields[4]), 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("metalog: parse ctime: %w", err)
	}
	mtime, err := strconv.ParseInt(strings.TrimSpace(fields[5]), 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("metalog: parse mtime: %w", err)
	}
	size, err := strconv.ParseInt(strings.TrimSpace(fields[6]), 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("metalog: parse size: %w", err)
	}
	uid, err := strconv.ParseUint(strings.TrimSpace(fields[9]), 10, 32)
	if err != nil {
		return Record{}, fmt.Errorf("metalog: parse uid: %w", err)
	}
	gid, err := strconv.ParseUint(strings.TrimSpace(fields[10]), 10, 32)
	if err != nil {
		return Record{}, fmt.Errorf("metalog: parse gid: %w", err)
	}

	r := Record{
		Type:  strings.TrimSpace(fields[0]),
		Inode: inode,
		Mode:  uint32(mode),
		Atime: atime,
		Ctime: ctime,
		Mtime: mtime,
		Size:  size,
		Owner: unquote(fields[7]),
		Group: unquote(fields[8]),
		UID:   uint32(uid),
		GID:   uint32(gid),
		Path:  unquote(fields[11]),
		Link:  unquote(fields[12]),
	}
	for _, f := range fields[13:] {
		if f == "" {
			continue
		}
		r.BlockList = append(r.BlockList, unquote(f))
	}
	return r, nil
}

// splitFields splits a log line on ", " while treating double-quoted
// segments as atomic, so a quoted field containing a literal comma is
// never split in two.
func splitFields(line string) []string {
	line = strings.TrimRight(line, "\n")
	var fields []string
	var cur strings.Builder
	inQuotes := false
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '"' && (i == 0 || runes[i-1] != '\\'):
			inQuotes = !inQuotes
			cur.WriteRune(c)
		case c == ',' && !inQuotes:
			fields = append(fields, cur.String())
			cur.Reset()
			if i+1 < len(runes) && runes[i+1] == ' ' {
				i++
			}
		default:
			cur.WriteRune(c)
		}
	}
	fields = append(fields, cur.String())
	return fields
}
