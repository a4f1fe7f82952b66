package extract

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/brojonat/gyards/property"
)

const tileSelector = "div.npTile"

// TileCount returns how many tiles the page carries, valid or not.
func TileCount(doc *goquery.Document) int {
	return doc.Find(tileSelector).Length()
}

// Tiles parses the listing summaries of a search-results page. Tiles without
// an id or a name are dropped.
func Tiles(doc *goquery.Document) []property.ListingTile {
	tiles := []property.ListingTile{}
	doc.Find(tileSelector).Each(func(_ int, s *goquery.Selection) {
		t := property.ListingTile{
			ID:             attr(s, ".npFavBtn", "data-projectid"),
			Name:           text(s, ".npProjectName a strong"),
			DetailURL:      attr(s, ".npProjectName a", "href"),
			Location:       text(s, ".npProjectCity"),
			Developer:      attr(s, ".npDeveloperLogo img", "alt"),
			PriceRangeText: text(s, ".npPriceBox"),
			Status:         attr(s, ".npFavBtn", "data-propstatus"),
		}
		if img, ok := tryFind(s, ".npTileFigure img"); ok {
			t.ThumbnailRef = imageURL(img)
		}
		if t.ID == "" || t.Name == "" {
			return
		}
		tiles = append(tiles, t)
	})
	return tiles
}
