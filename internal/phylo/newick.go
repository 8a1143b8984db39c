package phylo

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports a malformed tree description. Offset is the byte
// position in the input where parsing failed.
type ParseError struct {
	Offset  int
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("newick: offset %d: %s", e.Offset, e.Message)
}

// ParseNewick parses a tree in Newick (bracket-nested) format.
//
// Supported syntax:
//   - multifurcating subtrees: (a,b,c)
//   - unquoted labels: any run of characters outside ()[]:;, and whitespace
//   - single-quoted labels with doubled-quote escape: 'Isolate ''X'''
//   - branch lengths after a colon, recorded but unused by assignment
//   - comments in square brackets, skipped (nesting allowed)
//   - a terminating semicolon, with only whitespace allowed after it
//
// The first top-level node becomes the root as written; no re-rooting is
// performed. Malformed input is fatal and returns a *ParseError.
func ParseNewick(input string) (*Tree, error) {
	p := &newickParser{input: input}
	p.skipJunk()
	if p.eof() {
		return nil, p.errorf("empty tree description")
	}

	t := &Tree{}
	root, err := p.parseSubtree(t, -1)
	if err != nil {
		return nil, err
	}
	t.Root = root

	p.skipJunk()
	if p.eof() || p.input[p.pos] != ';' {
		return nil, p.errorf("expected ';' at end of tree")
	}
	p.pos++
	p.skipJunk()
	if !p.eof() {
		return nil, p.errorf("trailing content after ';'")
	}
	return t, nil
}

type newickParser struct {
	input string
	pos   int
}

func (p *newickParser) eof() bool {
	return p.pos >= len(p.input)
}

func (p *newickParser) errorf(format string, args ...any) error {
	return &ParseError{Offset: p.pos, Message: fmt.Sprintf(format, args...)}
}

// skipJunk advances past whitespace and bracketed comments.
func (p *newickParser) skipJunk() {
	for !p.eof() {
		c := p.input[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.pos++
		case c == '[':
			depth := 0
			for !p.eof() {
				switch p.input[p.pos] {
				case '[':
					depth++
				case ']':
					depth--
				}
				p.pos++
				if depth == 0 {
					break
				}
			}
		default:
			return
		}
	}
}

// parseSubtree parses one subtree and appends its nodes to the arena.
// Returns the arena index of the subtree root.
func (p *newickParser) parseSubtree(t *Tree, parent int) (int, error) {
	p.skipJunk()
	if p.eof() {
		return 0, p.errorf("unexpected end of input")
	}

	id := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{Parent: parent})

	if p.input[p.pos] == '(' {
		p.pos++
		for {
			child, err := p.parseSubtree(t, id)
			if err != nil {
				return 0, err
			}
			t.Nodes[id].Children = append(t.Nodes[id].Children, child)

			p.skipJunk()
			if p.eof() {
				return 0, p.errorf("unterminated '('")
			}
			if p.input[p.pos] == ',' {
				p.pos++
				continue
			}
			if p.input[p.pos] == ')' {
				p.pos++
				break
			}
			return 0, p.errorf("expected ',' or ')', got %q", p.input[p.pos])
		}
	}

	name, err := p.parseLabel()
	if err != nil {
		return 0, err
	}
	t.Nodes[id].Name = name

	if len(t.Nodes[id].Children) == 0 && name == "" {
		return 0, p.errorf("tip without an identifier")
	}

	p.skipJunk()
	if !p.eof() && p.input[p.pos] == ':' {
		p.pos++
		length, err := p.parseLength()
		if err != nil {
			return 0, err
		}
		t.Nodes[id].Length = length
	}

	return id, nil
}

// parseLabel reads an optional node label, quoted or bare.
func (p *newickParser) parseLabel() (string, error) {
	p.skipJunk()
	if p.eof() {
		return "", nil
	}

	if p.input[p.pos] == '\'' {
		p.pos++
		var b strings.Builder
		for {
			if p.eof() {
				return "", p.errorf("unterminated quoted label")
			}
			c := p.input[p.pos]
			if c == '\'' {
				// A doubled quote is an escaped literal quote.
				if p.pos+1 < len(p.input) && p.input[p.pos+1] == '\'' {
					b.WriteByte('\'')
					p.pos += 2
					continue
				}
				p.pos++
				return b.String(), nil
			}
			b.WriteByte(c)
			p.pos++
		}
	}

	start := p.pos
	for !p.eof() && !isLabelTerminator(p.input[p.pos]) {
		p.pos++
	}
	return strings.TrimSpace(p.input[start:p.pos]), nil
}

// parseLength reads the numeric branch length after ':'.
func (p *newickParser) parseLength() (float64, error) {
	p.skipJunk()
	start := p.pos
	for !p.eof() && !isLabelTerminator(p.input[p.pos]) {
		p.pos++
	}
	text := strings.TrimSpace(p.input[start:p.pos])
	if text == "" {
		return 0, p.errorf("missing branch length after ':'")
	}
	length, err := strconv.ParseFloat(text, 64)
	if err != nil {
		p.pos = start
		return 0, p.errorf("invalid branch length %q", text)
	}
	return length, nil
}

func isLabelTerminator(c byte) bool {
	switch c {
	case '(', ')', '[', ']', ':', ';', ',', ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
