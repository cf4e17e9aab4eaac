package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/grishkovelli/asc/internal/model"
)

// HTMLCheerioName is the default parser's registry name (§4.6).
const HTMLCheerioName = "html-cheerio"

// HTMLCheerio is the one concrete parser function shipped with the
// cluster: a generic HTML document extractor built on goquery, in the
// spirit of a jQuery/cheerio-style selector API.
func HTMLCheerio(body string, job model.Job) (map[string]any, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, err
	}

	data := map[string]any{}

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		data["title"] = title
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		data["h1"] = h1
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		if desc = strings.TrimSpace(desc); desc != "" {
			data["description"] = desc
		}
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok && href != "" {
			links = append(links, href)
		}
	})
	if len(links) > 0 {
		data["links"] = links
	}

	return data, nil
}
