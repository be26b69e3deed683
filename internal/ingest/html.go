package ingest

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Page is the readable content of an HTML document.
type Page struct {
	Title string
	Text  string
}

// ExtractPage pulls the main article text and a title out of an HTML document.
// When readability finds no article body, the document's visible text is used.
func ExtractPage(html string, pageURL *url.URL) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}

	var page Page
	if article, err := readability.FromReader(strings.NewReader(html), pageURL); err == nil {
		page.Title = strings.TrimSpace(article.Title)
		page.Text = strings.TrimSpace(article.TextContent)
	}
	if page.Title == "" {
		page.Title = fallbackTitle(doc)
	}
	if page.Text == "" {
		doc.Find("script, style, noscript, nav, header, footer").Remove()
		page.Text = strings.TrimSpace(doc.Find("body").Text())
	}
	return page, nil
}

func fallbackTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if title := strings.TrimSpace(doc.Find("h1").First().Text()); title != "" {
		return title
	}
	for _, selector := range []string{"meta[property='og:title']", "meta[name='title']"} {
		if title, ok := doc.Find(selector).Attr("content"); ok && strings.TrimSpace(title) != "" {
			return strings.TrimSpace(title)
		}
	}
	return ""
}
