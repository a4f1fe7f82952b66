package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/brojonat/gyards/property"
)

// About returns the inner HTML of the project description block.
func About(doc *goquery.Document) string {
	return innerHTML(doc.Selection, "#aboutProject .aboutTextBox")
}

func UnitConfigurations(doc *goquery.Document) []property.UnitConfiguration {
	out := []property.UnitConfiguration{}
	tableRows(doc.Selection, "#unitConfiguration table tbody tr", 3, func(c []string) {
		out = append(out, property.UnitConfiguration{Configuration: c[0], Area: c[1], Price: c[2]})
	})
	return out
}

// Specifications returns one entry per table row that has both a heading and
// a value cell.
func Specifications(doc *goquery.Document) []property.Specification {
	out := []property.Specification{}
	doc.Find("#specifications table tr").Each(func(_ int, row *goquery.Selection) {
		th, okTh := tryFind(row, "th")
		td, okTd := tryFind(row, "td")
		if !okTh || !okTd {
			return
		}
		out = append(out, property.Specification{Title: clean(th.Text()), Value: clean(td.Text())})
	})
	return out
}

// Amenities groups amenity icons by category. Items missing a name or icon are
// skipped and categories left empty are not added.
func Amenities(doc *goquery.Document) map[string][]property.Amenity {
	out := map[string][]property.Amenity{}
	doc.Find("#amenities .amenitiesCategory").Each(func(_ int, cat *goquery.Selection) {
		key := groupKey(cat, ".amenitiesHeading")
		if key == "" {
			return
		}
		var items []property.Amenity
		cat.Find("li").Each(func(_ int, li *goquery.Selection) {
			name := text(li, ".amenityName")
			img, _ := tryFind(li, "img")
			icon := imageURL(img)
			if name == "" || icon == "" {
				return
			}
			items = append(items, property.Amenity{Name: name, IconURL: icon})
		})
		if len(items) > 0 {
			out[key] = append(out[key], items...)
		}
	})
	return out
}

// BuilderSummary is the builder block embedded in a project detail page.
type BuilderSummary struct {
	Name          string
	ImageURL      string
	ProfileURL    string
	TotalProjects string
	Experience    string
	Description   string
}

const builderHeadingPrefix = "About "

func Builder(doc *goquery.Document) BuilderSummary {
	root, ok := tryFind(doc.Selection, "#aboutBuilder")
	if !ok {
		return BuilderSummary{}
	}
	b := BuilderSummary{
		Name:          strings.TrimSpace(strings.TrimPrefix(text(root, "h2"), builderHeadingPrefix)),
		ProfileURL:    attr(root, "h2 a", "href"),
		TotalProjects: text(root, ".totalProjects strong"),
		Experience:    text(root, ".experience strong"),
		Description:   text(root, ".builderDescription"),
	}
	if img, ok := tryFind(root, ".builderLogo img"); ok {
		b.ImageURL = imageURL(img)
	}
	return b
}

func PriceList(doc *goquery.Document) []property.PriceRow {
	out := []property.PriceRow{}
	tableRows(doc.Selection, "#priceList table tbody tr", 3, func(c []string) {
		out = append(out, property.PriceRow{UnitType: c[0], Size: c[1], Price: c[2]})
	})
	return out
}

func PriceInsights(doc *goquery.Document) property.PriceInsights {
	out := property.PriceInsights{
		RentalSupply:       []property.RentalSupply{},
		ComparableProjects: []property.ComparableProject{},
	}
	root, ok := tryFind(doc.Selection, "#priceInsights")
	if !ok {
		return out
	}
	tableRows(root, ".rentalSupply table tbody tr", 3, func(c []string) {
		out.RentalSupply = append(out.RentalSupply, property.RentalSupply{
			Configuration: c[0], AverageRent: c[1], Supply: c[2],
		})
	})
	tableRows(root, ".comparableProjects table tbody tr", 3, func(c []string) {
		out.ComparableProjects = append(out.ComparableProjects, property.ComparableProject{
			Project: c[0], PricePerSqft: c[1], PriceChange: c[2],
		})
	})
	return out
}

// NearbyLandmarks groups landmarks by category. Entries need a title; the
// distance may be blank.
func NearbyLandmarks(doc *goquery.Document) map[string][]property.Landmark {
	out := map[string][]property.Landmark{}
	doc.Find("#nearbyLandmarks .landmarkCategory").Each(func(_ int, cat *goquery.Selection) {
		key := groupKey(cat, ".landmarkHeading")
		if key == "" {
			return
		}
		var items []property.Landmark
		cat.Find("li").Each(func(_ int, li *goquery.Selection) {
			title := text(li, ".landmarkName")
			if title == "" {
				return
			}
			items = append(items, property.Landmark{Title: title, Distance: text(li, ".landmarkDistance")})
		})
		if len(items) > 0 {
			out[key] = append(out[key], items...)
		}
	})
	return out
}

// Rera returns one entry per registration panel plus the portal's own
// registration code, which lives outside the section.
func Rera(doc *goquery.Document) property.Rera {
	out := property.Rera{ProjectRera: []property.ReraEntry{}}
	doc.Find("#reraDetails .accordianBox .panel").Each(func(_ int, p *goquery.Selection) {
		out.ProjectRera = append(out.ProjectRera, property.ReraEntry{
			Title:          text(p, ".panelHeader strong"),
			RegistrationID: text(p, ".reraNumber"),
			Link:           attr(p, "a[href]", "href"),
		})
	})
	out.SquareYardsRera = text(doc.Selection, ".squareYardsRera")
	return out
}

func LocationInsights(doc *goquery.Document) property.LocationInsights {
	out := property.LocationInsights{Insights: []string{}}
	root, ok := tryFind(doc.Selection, "#locationInsights")
	if !ok {
		return out
	}
	out.Description = text(root, ".locationDescription")
	root.Find(".insightList li").Each(func(_ int, li *goquery.Selection) {
		if t := clean(li.Text()); t != "" {
			out.Insights = append(out.Insights, t)
		}
	})
	out.KnowMoreURL = attr(root, "a.knowMore", "href")
	return out
}

// allFloorPlans is the tab that repeats every other category.
const allFloorPlans = "all"

// FloorPlans groups floor plan cards by bedroom category.
func FloorPlans(doc *goquery.Document) map[string][]property.FloorPlan {
	out := map[string][]property.FloorPlan{}
	doc.Find("#floorPlans .floorPlanPanel").Each(func(_ int, panel *goquery.Selection) {
		key := clean(panel.AttrOr("data-category", ""))
		if key == "" || strings.EqualFold(key, allFloorPlans) {
			return
		}
		var plans []property.FloorPlan
		panel.Find(".floorPlanCard").Each(func(_ int, card *goquery.Selection) {
			fp := property.FloorPlan{
				Title:          text(card, ".floorPlanTitle"),
				Attribute:      text(card, ".floorPlanSize"),
				VirtualTourURL: attr(card, "a.virtualTour", "href"),
				Price:          text(card, ".floorPlanPrice"),
			}
			if img, ok := tryFind(card, "figure img"); ok {
				fp.Image2DURL = imageURL(img)
			}
			plans = append(plans, fp)
		})
		if len(plans) > 0 {
			out[key] = append(out[key], plans...)
		}
	})
	return out
}

// FAQ reads question/answer pairs from an accordion. It is shared by project
// and builder pages.
func FAQ(doc *goquery.Document) []property.FAQ {
	out := []property.FAQ{}
	doc.Find("#faq .accordianBox .panel").Each(func(_ int, p *goquery.Selection) {
		q := text(p, ".panelHeader strong")
		a := text(p, ".panelBody p")
		if q == "" || a == "" {
			return
		}
		out = append(out, property.FAQ{Question: q, Answer: a})
	})
	return out
}
