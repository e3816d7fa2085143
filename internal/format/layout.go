package format

import (
	"bytes"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// UnwrapLayoutTables replaces single-column tables without headers by the
// content of their cells. Newsletters use such tables for layout only, and
// converting them literally yields unreadable Markdown tables. Tables with
// headers or more than one column are kept.
func UnwrapLayoutTables(raw []byte) []byte {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return raw
	}

	unwrapNode(doc)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return raw
	}
	return buf.Bytes()
}

// unwrapNode works bottom-up so nested layout tables collapse in one pass.
func unwrapNode(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		unwrapNode(c)
		c = next
	}

	if n.Type == html.ElementNode && n.DataAtom == atom.Table && n.Parent != nil && isLayoutTable(n) {
		unwrapTable(n)
	}
}

func isLayoutTable(table *html.Node) bool {
	layout := true
	walk(table, func(n *html.Node) {
		switch n.DataAtom {
		case atom.Th, atom.Thead:
			layout = false
		case atom.Tr:
			if countCells(n) > 1 {
				layout = false
			}
		}
	})
	return layout
}

func unwrapTable(table *html.Node) {
	var rows []*html.Node
	walk(table, func(n *html.Node) {
		if n.DataAtom == atom.Tr {
			rows = append(rows, n)
		}
	})

	parent := table.Parent
	for _, row := range rows {
		block := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
		for cell := row.FirstChild; cell != nil; cell = cell.NextSibling {
			if cell.DataAtom != atom.Td {
				continue
			}
			for c := cell.FirstChild; c != nil; {
				next := c.NextSibling
				cell.RemoveChild(c)
				block.AppendChild(c)
				c = next
			}
		}
		if block.FirstChild != nil {
			parent.InsertBefore(block, table)
		}
	}
	parent.RemoveChild(table)
}

func countCells(row *html.Node) int {
	cells := 0
	for c := row.FirstChild; c != nil; c = c.NextSibling {
		if c.DataAtom == atom.Td || c.DataAtom == atom.Th {
			cells++
		}
	}
	return cells
}

func walk(n *html.Node, fn func(*html.Node)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			fn(c)
		}
		walk(c, fn)
	}
}
