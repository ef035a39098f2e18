package extract

import (
	"net/url"
	"strings"

	"github.com/Houeta/rival-radar/internal/models"
	"github.com/PuerkitoBio/goquery"
)

// Title length bounds for plausible post titles.
const (
	minTitleLen = 10
	maxTitleLen = 200
)

const articleContainers = `article, [class*="post"], [class*="blog"], [class*="entry"], [class*="article"]`

// ExtractArticles collects post titles from article-like repeated structures,
// preserving document order as newest-first. Falls back to bare h2/h3
// headings when no article containers exist. At most max entries are kept.
func ExtractArticles(scope *goquery.Selection, max int) []models.Article {
	var articles []models.Article
	seen := make(map[string]struct{})

	add := func(title, href string) {
		title = normalizeLine(title)
		if len(title) < minTitleLen || len(title) > maxTitleLen {
			return
		}
		a := models.Article{Title: title, ID: ArticleID(href)}
		if _, ok := seen[strings.ToLower(a.Key())]; ok {
			return
		}
		seen[strings.ToLower(a.Key())] = struct{}{}
		articles = append(articles, a)
	}

	scope.Find(articleContainers).Each(func(_ int, el *goquery.Selection) {
		title := el.Find("h1, h2, h3, h4").First()
		if title.Length() == 0 {
			return
		}
		link := title.Find("a").First()
		if link.Length() == 0 {
			link = el.Find("a").First()
		}
		href, _ := link.Attr("href")
		add(title.Text(), href)
	})

	if len(articles) == 0 {
		scope.Find("h2, h3").Each(func(_ int, h *goquery.Selection) {
			href, _ := h.Find("a").First().Attr("href")
			add(h.Text(), href)
		})
	}

	if len(articles) > max {
		articles = articles[:max]
	}
	return articles
}

// ArticleID derives a canonical identifier from a post link: the URL path
// with volatile query and fragment parts stripped. Empty when there is no
// usable link.
func ArticleID(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return strings.Trim(u.Path, "/")
}
