// Package extract maps fragments of the portal's HTML onto the property
// schema. Every extractor is a pure function of an already fetched document and
// treats missing markup as "no data": an absent root yields the field's empty
// value and an absent child leaves only that value empty.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// tryFind returns the first match of css under s.
func tryFind(s *goquery.Selection, css string) (*goquery.Selection, bool) {
	if s == nil {
		return nil, false
	}
	f := s.Find(css).First()
	return f, f.Length() > 0
}

// clean trims s and collapses internal whitespace runs to one space.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func text(s *goquery.Selection, css string) string {
	if f, ok := tryFind(s, css); ok {
		return clean(f.Text())
	}
	return ""
}

func textPtr(s *goquery.Selection, css string) *string {
	if f, ok := tryFind(s, css); ok {
		v := clean(f.Text())
		return &v
	}
	return nil
}

func attr(s *goquery.Selection, css, name string) string {
	if f, ok := tryFind(s, css); ok {
		return strings.TrimSpace(f.AttrOr(name, ""))
	}
	return ""
}

func attrPtr(s *goquery.Selection, name string) *string {
	if s == nil {
		return nil
	}
	v, ok := s.Attr(name)
	if !ok {
		return nil
	}
	v = strings.TrimSpace(v)
	return &v
}

func innerHTML(s *goquery.Selection, css string) string {
	f, ok := tryFind(s, css)
	if !ok {
		return ""
	}
	h, err := f.Html()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(h)
}

func outerHTML(s *goquery.Selection, css string) *string {
	f, ok := tryFind(s, css)
	if !ok {
		return nil
	}
	h, err := goquery.OuterHtml(f)
	if err != nil {
		return nil
	}
	h = strings.TrimSpace(h)
	return &h
}

// imageURL reads the lazy-load data-src of an <img>, falling back to src, and
// drops the query string.
func imageURL(img *goquery.Selection) string {
	if img == nil || img.Length() == 0 {
		return ""
	}
	u := strings.TrimSpace(img.AttrOr("data-src", ""))
	if u == "" {
		u = strings.TrimSpace(img.AttrOr("src", ""))
	}
	return StripQuery(u)
}

func imageURLPtr(s *goquery.Selection, css string) *string {
	img, ok := tryFind(s, css)
	if !ok {
		return nil
	}
	u := imageURL(img)
	return &u
}

// StripQuery removes everything from the first '?' on. The site serves one
// asset under many cache-busting URLs and the bare URL is the dedup key.
func StripQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}

// tableRows calls fn with the cleaned cell texts of every row matched by css
// that has exactly arity <td> cells. Other rows are skipped.
func tableRows(s *goquery.Selection, css string, arity int, fn func(cells []string)) {
	if s == nil {
		return
	}
	s.Find(css).Each(func(_ int, row *goquery.Selection) {
		tds := row.ChildrenFiltered("td")
		if tds.Length() != arity {
			return
		}
		cells := make([]string, 0, arity)
		tds.Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, clean(td.Text()))
		})
		fn(cells)
	})
}

// groupKey names a tabbed category from its data-category attribute or,
// failing that, from the heading inside it.
func groupKey(s *goquery.Selection, headingCSS string) string {
	if k := clean(s.AttrOr("data-category", "")); k != "" {
		return k
	}
	return text(s, headingCSS)
}
