package research

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// skipped elements carry chrome or code, not page content.
var skipped = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true, "svg": true,
	"nav": true, "footer": true, "header": true, "aside": true, "template": true,
}

// extraction is the bundle-independent part of a page.
type extraction struct {
	title           string
	metaDescription string
	h1              []string
	text            string
	truncated       bool
	structuredTypes []string
}

// extract parses raw HTML into text and markup facts. maxChars caps the
// body text in runes.
func extract(raw []byte, maxChars int) (*extraction, error) {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	ex := &extraction{}
	types := make(map[string]bool)
	var sb strings.Builder
	walk(doc, ex, types, &sb, 0)

	ex.text = strings.Join(strings.Fields(sb.String()), " ")
	if maxChars > 0 {
		if r := []rune(ex.text); len(r) > maxChars {
			ex.text = string(r[:maxChars])
			ex.truncated = true
		}
	}
	for t := range types {
		ex.structuredTypes = append(ex.structuredTypes, t)
	}
	sort.Strings(ex.structuredTypes)
	return ex, nil
}

func walk(n *html.Node, ex *extraction, types map[string]bool, sb *strings.Builder, depth int) {
	if depth > 200 {
		return
	}
	if n.Type == html.ElementNode {
		if it := getAttr(n, "itemtype"); it != "" {
			for _, t := range strings.Fields(it) {
				types[schemaName(t)] = true
			}
		}
		switch n.Data {
		case "script":
			if strings.EqualFold(getAttr(n, "type"), "application/ld+json") && n.FirstChild != nil {
				collectJSONLDTypes(n.FirstChild.Data, types)
			}
			return
		case "title":
			if ex.title == "" {
				ex.title = collapse(textOf(n))
			}
			return
		case "meta":
			if strings.EqualFold(getAttr(n, "name"), "description") && ex.metaDescription == "" {
				ex.metaDescription = collapse(getAttr(n, "content"))
			}
			return
		case "h1":
			if h := collapse(textOf(n)); h != "" {
				ex.h1 = append(ex.h1, h)
			}
		}
		if skipped[n.Data] {
			return
		}
	}
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			sb.WriteString(t)
			sb.WriteByte(' ')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, ex, types, sb, depth+1)
	}
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return sb.String()
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func collapse(s string) string { return strings.Join(strings.Fields(s), " ") }

// schemaName turns "https://schema.org/Product" into "Product".
func schemaName(t string) string {
	t = strings.TrimRight(t, "/")
	if i := strings.LastIndexAny(t, "/#:"); i >= 0 {
		t = t[i+1:]
	}
	return t
}

// collectJSONLDTypes records every @type in a JSON-LD block, including
// nested entities and @graph members. Malformed blocks are ignored.
func collectJSONLDTypes(raw string, types map[string]bool) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return
	}
	var rec func(any)
	rec = func(v any) {
		switch x := v.(type) {
		case map[string]any:
			switch t := x["@type"].(type) {
			case string:
				types[schemaName(t)] = true
			case []any:
				for _, e := range t {
					if s, ok := e.(string); ok {
						types[schemaName(s)] = true
					}
				}
			}
			for _, child := range x {
				rec(child)
			}
		case []any:
			for _, e := range x {
				rec(e)
			}
		}
	}
	rec(v)
}
