package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/brojonat/gyards/property"
)

const (
	defaultExecutivesHeading = "CEO"
	defaultTeamHeading       = "Owners / Team"
)

// BuilderProfile merges the builder profile page into b. Fields the page does
// not carry are left as they are.
func BuilderProfile(doc *goquery.Document, b *property.BuilderInfo) {
	if d := BuilderDescription(doc); d != "" {
		b.Description = d
	}
	b.HeadOfficeAddress = HeadOffice(doc)
	b.BranchOffices = BranchOffices(doc)
	b.CompanySize = CompanySize(doc)
	b.ManagementTeam = ManagementTeam(doc)
	b.KeyServices = outerHTML(doc.Selection, "#keyServices .descriptionBox")
	b.Awards = outerHTML(doc.Selection, "div#awards .awardDescription")
	b.CustomerCareNumber = textPtr(doc.Selection, "div#contact .descriptionBox .telephoneNumber a")
	b.FAQ = FAQ(doc)
	b.OperatingCities = OperatingCities(doc)
}

func BuilderDescription(doc *goquery.Document) string {
	return text(doc.Selection, "div.description#overview .descriptionBox")
}

// HeadOffice returns nil when the page has no main office block.
func HeadOffice(doc *goquery.Document) *property.Office {
	box, ok := tryFind(doc.Selection, ".mainOfficeBox .mainOfficeAddress")
	if !ok {
		return nil
	}
	return &property.Office{
		Title:     textPtr(box, "strong"),
		City:      textPtr(box, "span"),
		Location:  textPtr(box, ".mainOfficeLocation span"),
		Latitude:  attrPtr(box, "data-lat"),
		Longitude: attrPtr(box, "data-long"),
	}
}

func BranchOffices(doc *goquery.Document) []property.BranchOffice {
	out := []property.BranchOffice{}
	doc.Find(".branchOfficeBox .branchOfficeBody .mainOfficeAddress").Each(func(_ int, s *goquery.Selection) {
		city := attrPtr(s, "data-name")
		if city == nil || *city == "" {
			city = textPtr(s, "span")
		}
		out = append(out, property.BranchOffice{
			City:      city,
			Latitude:  attrPtr(s, "data-lat"),
			Longitude: attrPtr(s, "data-long"),
			Address:   textPtr(s, ".mainOfficeLocation span p"),
		})
	})
	return out
}

func CompanySize(doc *goquery.Document) *property.CompanySize {
	root, ok := tryFind(doc.Selection, "#companySize")
	if !ok {
		return nil
	}
	var parts []string
	root.Find(".companySizeBody p span").Each(func(_ int, s *goquery.Selection) {
		if t := clean(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return &property.CompanySize{
		CompanySize: textPtr(root, ".companySizeBody .sizeOfCompany span"),
		Description: strings.Join(parts, " "),
	}
}

// ManagementTeam returns the executive profiles and the team carousel, each
// keyed by its section heading. Both groups are present whenever the section
// is.
func ManagementTeam(doc *goquery.Document) map[string][]property.TeamMember {
	out := map[string][]property.TeamMember{}
	root, ok := tryFind(doc.Selection, "#managementTeam")
	if !ok {
		return out
	}

	execKey := defaultExecutivesHeading
	if h := root.Find(".ownersHeading span").Not(".companyOwnersBox .ownersHeading span").First(); h.Length() > 0 {
		if t := clean(h.Text()); t != "" {
			execKey = t
		}
	}
	execs := []property.TeamMember{}
	root.Find(".ownersProfileBox").Each(func(_ int, s *goquery.Selection) {
		m := property.TeamMember{
			Name:        textPtr(s, ".profileDetail strong"),
			Description: textPtr(s, ".profileDetail span"),
		}
		if img, ok := tryFind(s, ".profileImg img"); ok {
			m.ImageURL = attrPtr(img, "data-src")
			if m.ImageURL != nil {
				u := StripQuery(*m.ImageURL)
				m.ImageURL = &u
			}
		}
		execs = append(execs, m)
	})
	out[execKey] = execs

	teamKey := defaultTeamHeading
	if t := text(root, ".companyOwnersBox .ownersHeading span"); t != "" {
		teamKey = t
	}
	team := []property.TeamMember{}
	root.Find(".ourTeamCard").Each(func(_ int, s *goquery.Selection) {
		team = append(team, property.TeamMember{
			Name:        textPtr(s, ".profileName"),
			ImageURL:    imageURLPtr(s, "figure img"),
			Description: textPtr(s, ".designationName span"),
		})
	})
	if prev, ok := out[teamKey]; ok {
		team = append(prev, team...)
	}
	out[teamKey] = team
	return out
}

func OperatingCities(doc *goquery.Document) []property.City {
	out := []property.City{}
	doc.Find("#operatingCities .chipFlexBox .chipFlex a.chipBox").Each(func(_ int, a *goquery.Selection) {
		name := clean(a.Text())
		if name == "" {
			return
		}
		out = append(out, property.City{City: name, URL: strings.TrimSpace(a.AttrOr("href", ""))})
	})
	return out
}
