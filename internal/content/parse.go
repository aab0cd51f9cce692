package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/codexuz/crm-cd-platform-sub000/internal/model"
)

const questionsBlock = "questions"

type frame struct {
	seq    int
	isObj  bool
	key    string
	hasKey bool
	fields map[string]any
}

type found struct {
	seq int
	c   model.Container
}

// ParseContainers walks a structured content description and returns every
// question container in document order. A container is any object whose
// "type" is "questions"; its range comes from "range" ("5-7") or "from"/"to".
func ParseContainers(raw []byte) ([]model.Container, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var (
		stack []*frame
		out   []found
		seq   int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse content: %w", err)
		}
		var top *frame
		if len(stack) > 0 {
			top = stack[len(stack)-1]
		}
		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '{', '[':
				if top != nil && top.isObj {
					top.hasKey = false
				}
				seq++
				f := &frame{seq: seq, isObj: v == '{'}
				if f.isObj {
					f.fields = make(map[string]any)
				}
				stack = append(stack, f)
			case '}':
				if c, ok := containerOf(top.fields); ok {
					out = append(out, found{seq: top.seq, c: c})
				} else if top.fields["type"] == questionsBlock {
					return nil, errors.New("parse content: questions block without id")
				}
				stack = stack[:len(stack)-1]
			case ']':
				stack = stack[:len(stack)-1]
			}
		default:
			if top == nil || !top.isObj {
				continue
			}
			if !top.hasKey {
				top.key, top.hasKey = v.(string)
				continue
			}
			top.fields[top.key] = v
			top.hasKey = false
		}
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("parse content: %w", io.ErrUnexpectedEOF)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	cs := make([]model.Container, len(out))
	for i, f := range out {
		cs[i] = f.c
	}
	return cs, nil
}

func containerOf(fields map[string]any) (model.Container, bool) {
	if fields["type"] != questionsBlock {
		return model.Container{}, false
	}
	id, err := cast.ToStringE(plain(fields["id"]))
	if err != nil || id == "" {
		return model.Container{}, false
	}
	c := model.Container{ID: id}
	if r, ok := fields["range"].(string); ok {
		c.From, c.To = parseRange(r)
	} else {
		c.From = atoi(fields["from"])
		c.To = atoi(fields["to"])
	}
	if c.Slots() == 0 {
		c.From, c.To = 0, 0
	}
	return c, true
}

// plain unwraps decoder numbers so cast sees a string.
func plain(v any) any {
	if n, ok := v.(json.Number); ok {
		return n.String()
	}
	return v
}

func atoi(v any) int {
	n, err := strconv.Atoi(strings.TrimSpace(cast.ToString(plain(v))))
	if err != nil {
		return 0
	}
	return n
}

// parseRange reads "5-7" or a single "5". Malformed input yields 0, 0.
func parseRange(r string) (int, int) {
	a, b, found := strings.Cut(strings.TrimSpace(r), "-")
	from, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return 0, 0
	}
	if !found {
		return from, from
	}
	to, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return 0, 0
	}
	return from, to
}
