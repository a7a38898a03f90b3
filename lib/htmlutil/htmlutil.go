package htmlutil

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("protscrape.lib.htmlutil")

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText is the trimmed text of a selection with runs of whitespace
// collapsed into a single space.
func CleanText(sel *goquery.Selection) string {
	var buffer bytes.Buffer
	for _, n := range sel.Nodes {
		getTextRecursive(n, &buffer)
	}
	text := removeNonPrintable(buffer.String())
	text = strings.TrimSpace(text)
	return innerWhitespace.ReplaceAllString(text, " ")
}

type Anchor struct {
	Name string
	Href string
}

// GetAnchors returns the anchors in sel, with hrefs resolved against base
// when base is not nil.
func GetAnchors(ctx context.Context, sel *goquery.Selection, base *url.URL) []Anchor {
	_, span := tracer.Start(ctx, "GetAnchors")
	defer span.End()

	anchors := []Anchor{}
	for _, n := range sel.Nodes {
		href := ""
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = a.Val
				break
			}
		}

		link, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "got error while parsing url")
			continue
		}
		if base != nil && href != "" {
			link = base.ResolveReference(link)
		}

		name := GetText(n)
		name = removeNonPrintable(name)
		name = strings.TrimSpace(name)
		name = innerWhitespace.ReplaceAllString(name, " ")

		linkStr := ""
		if href != "" {
			linkStr = link.String()
		}
		anchors = append(anchors, Anchor{
			Name: name,
			Href: linkStr,
		})
		span.AddEvent("anchor", trace.WithAttributes(
			attribute.String("name", name),
			attribute.String("url", linkStr),
		))
	}

	return anchors
}

// FirstAnchor is the first anchor under sel, ok is false when there is none.
func FirstAnchor(ctx context.Context, sel *goquery.Selection, base *url.URL) (Anchor, bool) {
	anchors := GetAnchors(ctx, sel.Find("a[href]").First(), base)
	if len(anchors) == 0 {
		return Anchor{}, false
	}
	return anchors[0], true
}

// TableWithHeader finds the first table whose first header cell contains
// header. Matching is on visible text, so it breaks whenever the upstream
// page renames that column.
func TableWithHeader(doc *goquery.Document, header string) *goquery.Selection {
	var found *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		th := table.Find("th").First()
		if th.Length() == 0 {
			return true
		}
		if strings.Contains(CleanText(th), header) {
			found = table
			return false
		}
		return true
	})
	return found
}

// BodyRows are the rows of table after its header row.
func BodyRows(table *goquery.Selection) []*goquery.Selection {
	rows := table.Find("tr")
	var out []*goquery.Selection
	rows.Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		out = append(out, row)
	})
	return out
}

// Cells returns the td cells of a row.
func Cells(row *goquery.Selection) []*goquery.Selection {
	var out []*goquery.Selection
	row.Find("td").Each(func(_ int, cell *goquery.Selection) {
		out = append(out, cell)
	})
	return out
}
