package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Path is a sequence of segments walked through decoded JSON.
//
// A segment is one of:
//
//	key              object member
//	key[3]           member, then array index
//	key[field=value] member, then first array element whose field equals value
//	[0], [f=v]       index or filter applied to the current value
//
// Keys are taken literally, so names containing dots such as
// "webapp.user-detail" need no escaping.
type Path []string

// segment is a parsed path segment.
type segment struct {
	key      string
	hasIndex bool
	index    int
	hasMatch bool
	field    string
	value    string
}

var errBadSegment = errors.New("malformed path segment")

// parseSegment parses one path segment.
func parseSegment(s string) (segment, error) {
	open := strings.IndexByte(s, '[')
	if open < 0 {
		if s == "" {
			return segment{}, fmt.Errorf("%w: empty", errBadSegment)
		}
		return segment{key: s}, nil
	}
	if !strings.HasSuffix(s, "]") {
		return segment{}, fmt.Errorf("%w: %q", errBadSegment, s)
	}

	seg := segment{key: s[:open]}
	inner := s[open+1 : len(s)-1]
	if field, value, ok := strings.Cut(inner, "="); ok {
		if field == "" {
			return segment{}, fmt.Errorf("%w: %q", errBadSegment, s)
		}
		seg.hasMatch = true
		seg.field = field
		seg.value = value
		return seg, nil
	}

	idx, err := strconv.Atoi(inner)
	if err != nil || idx < 0 {
		return segment{}, fmt.Errorf("%w: %q", errBadSegment, s)
	}
	seg.hasIndex = true
	seg.index = idx
	return seg, nil
}

// resolve walks p from v. It reports false when any step is missing or has
// the wrong shape.
func (p Path) resolve(v any) (any, bool) {
	cur := v
	for _, raw := range p {
		seg, err := parseSegment(raw)
		if err != nil {
			return nil, false
		}
		if seg.key != "" {
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			if cur, ok = obj[seg.key]; !ok {
				return nil, false
			}
		}
		switch {
		case seg.hasIndex:
			arr, ok := cur.([]any)
			if !ok || seg.index >= len(arr) {
				return nil, false
			}
			cur = arr[seg.index]
		case seg.hasMatch:
			arr, ok := cur.([]any)
			if !ok {
				return nil, false
			}
			found := false
			for _, el := range arr {
				obj, ok := el.(map[string]any)
				if !ok {
					continue
				}
				if fmt.Sprint(obj[seg.field]) == seg.value {
					cur = el
					found = true
					break
				}
			}
			if !found {
				return nil, false
			}
		}
	}
	return cur, true
}
