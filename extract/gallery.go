package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/brojonat/gyards/property"
)

// Gallery classifies the <figure> items found under root. Images are grouped by
// their sub-tab and have their query stripped; video sources are kept
// verbatim.
func Gallery(root *goquery.Selection) property.Media {
	m := property.NewMedia()
	if root == nil {
		return m
	}
	root.Find("figure").Each(func(_ int, fig *goquery.Selection) {
		if img, ok := tryFind(fig, "img"); ok {
			sub := clean(fig.AttrOr("sub-tab", ""))
			src := imageURL(img)
			if sub == "" || src == "" {
				return
			}
			m.Images[sub] = append(m.Images[sub], property.Image{
				Title: clean(img.AttrOr("title", "")),
				Src:   src,
				Alt:   clean(img.AttrOr("alt", "")),
			})
			return
		}
		video, ok := tryFind(fig, "video")
		if !ok {
			return
		}
		source, ok := tryFind(video, "source")
		if !ok {
			return
		}
		src := strings.TrimSpace(source.AttrOr("src", ""))
		if src == "" {
			return
		}
		m.Videos = append(m.Videos, property.Video{
			Type: strings.TrimSpace(source.AttrOr("type", "")),
			Src:  src,
			Alt:  clean(video.AttrOr("alt", "")),
		})
	})
	return m
}
