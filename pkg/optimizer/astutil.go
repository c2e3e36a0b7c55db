package optimizer

import (
	"fmt"
	"strings"

	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/parser"
)

// keyText returns the literal text of a mapping key.
func keyText(key ast.MapKeyNode) string {
	if s, ok := key.(*ast.StringNode); ok {
		return s.Value
	}
	if tk := key.GetToken(); tk != nil {
		return tk.Value
	}
	return ""
}

// mappingValue finds the entry for key in a mapping, or nil.
func mappingValue(m *ast.MappingNode, key string) *ast.MappingValueNode {
	if m == nil {
		return nil
	}
	for _, kv := range m.Values {
		if keyText(kv.Key) == key {
			return kv
		}
	}
	return nil
}

// childMapping resolves m[key] as a mapping, tolerating the single-entry
// form the parser sometimes produces.
func childMapping(m *ast.MappingNode, key string) *ast.MappingNode {
	kv := mappingValue(m, key)
	if kv == nil {
		return nil
	}
	return asMapping(kv.Value)
}

func asMapping(node ast.Node) *ast.MappingNode {
	switch t := node.(type) {
	case *ast.MappingNode:
		return t
	case *ast.MappingValueNode:
		return &ast.MappingNode{Values: []*ast.MappingValueNode{t}}
	}
	return nil
}

func asSequence(node ast.Node) *ast.SequenceNode {
	seq, _ := node.(*ast.SequenceNode)
	return seq
}

// scalarText returns the text of a scalar node, "" for non-scalars.
func scalarText(node ast.Node) string {
	switch t := node.(type) {
	case *ast.StringNode:
		return t.Value
	case *ast.LiteralNode:
		return t.Value.Value
	case *ast.IntegerNode, *ast.FloatNode, *ast.BoolNode:
		if tk := node.GetToken(); tk != nil {
			return tk.Value
		}
	}
	return ""
}

// nodeIndent returns the column-derived indentation of a node's first token.
func nodeIndent(node ast.Node) int {
	if tk := node.GetToken(); tk != nil && tk.Position != nil && tk.Position.Column > 0 {
		return tk.Position.Column - 1
	}
	return 0
}

// parseSnippet parses a YAML fragment rendered at the given indentation
// so the grafted tokens line up with their destination context.
func parseSnippet(indent int, body string) (ast.Node, error) {
	var b strings.Builder
	prefix := strings.Repeat(" ", indent)
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			b.WriteByte('\n')
			continue
		}
		b.WriteString(prefix)
		b.WriteString(line)
		b.WriteByte('\n')
	}
	file, err := parser.ParseBytes([]byte(b.String()), parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parsing rewrite snippet: %w", err)
	}
	if len(file.Docs) == 0 || file.Docs[0].Body == nil {
		return nil, fmt.Errorf("empty rewrite snippet")
	}
	return file.Docs[0].Body, nil
}

// appendMappingEntries grafts the entries of a parsed snippet mapping
// onto the end of dst.
func appendMappingEntries(dst *ast.MappingNode, snippet ast.Node) error {
	src := asMapping(snippet)
	if src == nil {
		return fmt.Errorf("rewrite snippet is not a mapping")
	}
	dst.Values = append(dst.Values, src.Values...)
	return nil
}

// insertSequenceValue inserts node into seq at index i.
func insertSequenceValue(seq *ast.SequenceNode, i int, node ast.Node) {
	if i < 0 || i > len(seq.Values) {
		i = len(seq.Values)
	}
	seq.Values = append(seq.Values, nil)
	copy(seq.Values[i+1:], seq.Values[i:])
	seq.Values[i] = node
}

// removeMappingKey drops the entry for key, reporting whether it existed.
func removeMappingKey(m *ast.MappingNode, key string) bool {
	for i, kv := range m.Values {
		if keyText(kv.Key) == key {
			m.Values = append(m.Values[:i], m.Values[i+1:]...)
			return true
		}
	}
	return false
}

// replaceValue swaps the value of a mapping entry with a node parsed at
// the entry's indentation.
func replaceValue(kv *ast.MappingValueNode, body string) error {
	node, err := parseSnippet(nodeIndent(kv.Key)+2, body)
	if err != nil {
		return err
	}
	kv.Value = node
	return nil
}

// replaceScalar swaps a scalar entry value for a plain one-line value.
func replaceScalar(kv *ast.MappingValueNode, value string) error {
	node, err := parseSnippet(0, "placeholder: "+value)
	if err != nil {
		return err
	}
	m := asMapping(node)
	if m == nil || len(m.Values) == 0 {
		return fmt.Errorf("malformed scalar snippet")
	}
	kv.Value = m.Values[0].Value
	return nil
}
