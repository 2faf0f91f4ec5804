package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageContent is the crawler's output for one fetched page: cleaned text plus
// the links discovered on it.
type PageContent struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Text        string   `json:"text"`
	Links       []string `json:"links,omitempty"`
	PDFLinks    []string `json:"pdf_links,omitempty"`
	ContentType string   `json:"content_type"`
}

// parseHTMLPage turns raw HTML into cleaned text, title, meta description,
// and absolute same-page links.
func parseHTMLPage(pageURL, html string, followLinks, extractPDFs bool) (*PageContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	page := &PageContent{
		URL:         pageURL,
		Title:       strings.TrimSpace(doc.Find("title").First().Text()),
		ContentType: "text/html",
	}

	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		page.Description = strings.TrimSpace(desc)
	}

	// Boilerplate elements carry navigation text, not content.
	doc.Find("script, style, nav, footer, header").Remove()
	page.Text = collapseWhitespace(doc.Find("body").Text())
	if page.Text == "" {
		page.Text = collapseWhitespace(doc.Text())
	}

	if followLinks || extractPDFs {
		doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			resolved := resolveLink(base, href)
			if resolved == "" {
				return
			}
			if extractPDFs && strings.HasSuffix(strings.ToLower(resolved), ".pdf") {
				page.PDFLinks = append(page.PDFLinks, resolved)
			}
			if followLinks {
				page.Links = append(page.Links, resolved)
			}
		})
	}

	return page, nil
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
