// Package ofx decodes OFX bank statement exports (SGML 1.x and XML 2.x)
// into a normalized domain.ParsedStatement.
package ofx

import (
	"html"
	"regexp"
	"strings"

	"github.com/felipemotter/gestor-sub001/internal/domain"
)

var ofxRoot = regexp.MustCompile(`(?i)<OFX>`)

var aggregates = map[string]bool{
	"OFX":          true,
	"SONRS":        true,
	"STATUS":       true,
	"FI":           true,
	"BANKTRANLIST": true,
	"STMTTRN":      true,
	"LEDGERBAL":    true,
	"AVAILBAL":     true,
}

var aggregateSuffixes = []string{"MSGSRSV1", "TRNRS", "STMTRS", "ACCTFROM"}

func isAggregate(name string) bool {
	if aggregates[name] {
		return true
	}
	for _, suffix := range aggregateSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// Node is one element of the decoded tag tree. Leaves carry a Value,
// aggregates carry Children.
type Node struct {
	Name     string
	Value    string
	Children []*Node
}

// Child returns the first direct child with the given name, or nil.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Path walks nested children by name.
func (n *Node) Path(names ...string) *Node {
	cur := n
	for _, name := range names {
		cur = cur.Child(name)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Text returns the trimmed value at the given path, or "" when absent.
func (n *Node) Text(names ...string) string {
	leaf := n.Path(names...)
	if leaf == nil {
		return ""
	}
	return strings.TrimSpace(leaf.Value)
}

// All returns every direct child with the given name. A statement holding a
// single STMTTRN and one holding many both come back as a slice.
func (n *Node) All(name string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Decode parses raw OFX text into its tag tree rooted at <OFX>. Leaf
// elements may be left unclosed (SGML) or closed (XML).
func Decode(content string) (*Node, error) {
	if strings.TrimSpace(content) == "" {
		return nil, &domain.ErrParse{Reason: "empty statement"}
	}
	loc := ofxRoot.FindStringIndex(content)
	if loc == nil {
		return nil, &domain.ErrParse{Reason: "missing <OFX> root element"}
	}

	d := &decoder{src: content[loc[0]:]}
	root, err := d.run()
	if err != nil {
		return nil, err
	}
	return root, nil
}

type decoder struct {
	src   string
	pos   int
	stack []*Node
	root  *Node
	// name of the leaf closed implicitly last, so an explicit </NAME> after
	// it is accepted.
	lastLeaf string
}

func (d *decoder) run() (*Node, error) {
	for {
		lt := strings.IndexByte(d.src[d.pos:], '<')
		if lt < 0 {
			break
		}
		d.pos += lt

		if strings.HasPrefix(d.src[d.pos:], "<!--") {
			end := strings.Index(d.src[d.pos:], "-->")
			if end < 0 {
				return nil, &domain.ErrParse{Reason: "unterminated comment"}
			}
			d.pos += end + len("-->")
			continue
		}

		gt := strings.IndexByte(d.src[d.pos:], '>')
		if gt < 0 {
			return nil, &domain.ErrParse{Reason: "unterminated tag"}
		}
		tag := strings.TrimSpace(d.src[d.pos+1 : d.pos+gt])
		d.pos += gt + 1

		switch {
		case tag == "":
			return nil, &domain.ErrParse{Reason: "empty tag"}
		case tag[0] == '?' || tag[0] == '!':
			continue
		case tag[0] == '/':
			if err := d.close(strings.ToUpper(strings.TrimSpace(tag[1:]))); err != nil {
				return nil, err
			}
		case strings.HasSuffix(tag, "/"):
			d.open(tagName(strings.TrimSuffix(tag, "/")))
			d.pop()
		default:
			n := d.open(tagName(tag))
			text := d.text()
			switch {
			case text != "":
				n.Value = html.UnescapeString(text)
				d.lastLeaf = d.pop().Name
			case !isAggregate(n.Name) && !d.closedBeforeParent(n.Name):
				// SGML leaf with no value, e.g. <MEMO> followed by <FITID>.
				d.lastLeaf = d.pop().Name
			}
		}

		if d.root != nil && len(d.stack) == 0 {
			return d.root, nil
		}
	}

	if d.root == nil || len(d.stack) > 0 {
		return nil, &domain.ErrParse{Reason: "unbalanced OFX document"}
	}
	return d.root, nil
}

func (d *decoder) open(name string) *Node {
	n := &Node{Name: name}
	if len(d.stack) == 0 {
		if d.root == nil {
			d.root = n
		}
	} else {
		parent := d.stack[len(d.stack)-1]
		parent.Children = append(parent.Children, n)
	}
	d.stack = append(d.stack, n)
	d.lastLeaf = ""
	return n
}

func (d *decoder) pop() *Node {
	n := d.stack[len(d.stack)-1]
	d.stack = d.stack[:len(d.stack)-1]
	return n
}

// close handles </NAME>. Unclosed SGML leaves between the top of the stack
// and the matching aggregate are closed implicitly.
func (d *decoder) close(name string) error {
	if name == d.lastLeaf {
		d.lastLeaf = ""
		return nil
	}
	for i := len(d.stack) - 1; i >= 0; i-- {
		if d.stack[i].Name == name {
			d.stack = d.stack[:i]
			d.lastLeaf = ""
			return nil
		}
	}
	return &domain.ErrParse{Reason: "unexpected closing tag </" + name + ">"}
}

// closedBeforeParent reports whether </name> appears ahead of the closing
// tag of the element enclosing the top of the stack.
func (d *decoder) closedBeforeParent(name string) bool {
	parent := ""
	if len(d.stack) > 1 {
		parent = d.stack[len(d.stack)-2].Name
	}
	rest := d.src[d.pos:]
	for {
		lt := strings.Index(rest, "</")
		if lt < 0 {
			return false
		}
		rest = rest[lt+2:]
		gt := strings.IndexByte(rest, '>')
		if gt < 0 {
			return false
		}
		closing := strings.ToUpper(strings.TrimSpace(rest[:gt]))
		switch closing {
		case name:
			return true
		case parent:
			return false
		}
		rest = rest[gt+1:]
	}
}

// text returns the character data up to the next tag.
func (d *decoder) text() string {
	end := strings.IndexByte(d.src[d.pos:], '<')
	if end < 0 {
		end = len(d.src) - d.pos
	}
	raw := d.src[d.pos : d.pos+end]
	d.pos += end
	return strings.TrimSpace(raw)
}

func tagName(tag string) string {
	if i := strings.IndexAny(tag, " \t\r\n"); i >= 0 {
		tag = tag[:i]
	}
	return strings.ToUpper(tag)
}
