package property

// ListingTile is one listing summary block parsed from a search-results page.
// Tiles only live long enough to be assembled into a Record.
type ListingTile struct {
	ID             string
	Name           string
	DetailURL      string
	Location       string
	Developer      string
	PriceRangeText string
	Status         string
	ThumbnailRef   string
}

// Record is the unit of output. Every list and map is always present in the
// serialized form; use NewRecord or Normalize to get that guarantee.
type Record struct {
	ID          string      `json:"id"`
	Project     Project     `json:"project"`
	BuilderInfo BuilderInfo `json:"builderInfo"`
	FAQ         []FAQ       `json:"faq"`
	AllMedia    Media       `json:"allMedia"`
}

type Project struct {
	Name             string                 `json:"name"`
	URL              string                 `json:"url"`
	Location         string                 `json:"location"`
	Developer        string                 `json:"developer"`
	Status           string                 `json:"status"`
	Price            string                 `json:"price"`
	ThumbnailImage   string                 `json:"thumbnailImage"`
	About            string                 `json:"about"`
	Information      []UnitConfiguration    `json:"information"`
	Specifications   []Specification        `json:"specifications"`
	Amenities        map[string][]Amenity   `json:"amenities"`
	FloorPlans       map[string][]FloorPlan `json:"floorPlans"`
	PriceList        []PriceRow             `json:"priceList"`
	PriceInsights    PriceInsights          `json:"priceInsights"`
	NearbyLandmarks  map[string][]Landmark  `json:"nearbyLandmarks"`
	Rera             Rera                   `json:"rera"`
	LocationInsights LocationInsights       `json:"locationInsights"`
}

type UnitConfiguration struct {
	Configuration string `json:"configuration"`
	Area          string `json:"area"`
	Price         string `json:"price"`
}

type Specification struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

type Amenity struct {
	Name    string `json:"name"`
	IconURL string `json:"iconUrl"`
}

type FloorPlan struct {
	Title          string `json:"title"`
	Attribute      string `json:"attribute"`
	Image2DURL     string `json:"image2dUrl"`
	VirtualTourURL string `json:"virtualTourUrl"`
	Price          string `json:"price"`
}

type PriceRow struct {
	UnitType string `json:"unitType"`
	Size     string `json:"size"`
	Price    string `json:"price"`
}

type PriceInsights struct {
	RentalSupply       []RentalSupply      `json:"rentalSupply"`
	ComparableProjects []ComparableProject `json:"comparableProjects"`
}

type RentalSupply struct {
	Configuration string `json:"configuration"`
	AverageRent   string `json:"averageRent"`
	Supply        string `json:"supply"`
}

type ComparableProject struct {
	Project      string `json:"project"`
	PricePerSqft string `json:"pricePerSqft"`
	PriceChange  string `json:"priceChange"`
}

type Landmark struct {
	Title    string `json:"title"`
	Distance string `json:"distance"`
}

type Rera struct {
	ProjectRera     []ReraEntry `json:"projectRera"`
	SquareYardsRera string      `json:"squareYardsRera"`
}

type ReraEntry struct {
	Title          string `json:"title"`
	RegistrationID string `json:"registrationId"`
	Link           string `json:"link"`
}

type LocationInsights struct {
	Description string   `json:"description"`
	Insights    []string `json:"insights"`
	KnowMoreURL string   `json:"knowMoreUrl"`
}

type BuilderInfo struct {
	Name               string                  `json:"name"`
	ImageURL           string                  `json:"imageUrl"`
	ProfileURL         string                  `json:"profileUrl"`
	TotalProjects      string                  `json:"totalProjects"`
	Experience         string                  `json:"experience"`
	Description        string                  `json:"description"`
	HeadOfficeAddress  *Office                 `json:"headOfficeAddress"`
	BranchOffices      []BranchOffice          `json:"branchOffices"`
	CompanySize        *CompanySize            `json:"companySize"`
	ManagementTeam     map[string][]TeamMember `json:"managementTeam"`
	KeyServices        *string                 `json:"keyServices"`
	Awards             *string                 `json:"awards"`
	CustomerCareNumber *string                 `json:"customerCareNumber"`
	FAQ                []FAQ                   `json:"faq"`
	OperatingCities    []City                  `json:"operatingCities"`
}

// Office is a builder's head office. Latitude and longitude are kept verbatim
// as the site publishes them.
type Office struct {
	Title     *string `json:"title"`
	City      *string `json:"city"`
	Location  *string `json:"location"`
	Latitude  *string `json:"latitude"`
	Longitude *string `json:"longitude"`
}

type BranchOffice struct {
	City      *string `json:"city"`
	Latitude  *string `json:"latitude"`
	Longitude *string `json:"longitude"`
	Address   *string `json:"address"`
}

type CompanySize struct {
	CompanySize *string `json:"companySize"`
	Description string  `json:"description"`
}

type TeamMember struct {
	Name        *string `json:"name"`
	ImageURL    *string `json:"imageUrl"`
	Description *string `json:"description"`
}

type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type City struct {
	City string `json:"city"`
	URL  string `json:"url"`
}

type Media struct {
	Images map[string][]Image `json:"images"`
	Videos []Video            `json:"videos"`
}

type Image struct {
	Title string `json:"title"`
	Src   string `json:"src"`
	Alt   string `json:"alt"`
}

type Video struct {
	Type string `json:"type"`
	Src  string `json:"src"`
	Alt  string `json:"alt"`
}

// NewRecord returns a record for id with every container initialised.
func NewRecord(id string) Record {
	r := Record{ID: id}
	r.Normalize()
	return r
}

// NewMedia returns an empty gallery.
func NewMedia() Media {
	return Media{Images: map[string][]Image{}, Videos: []Video{}}
}

// Normalize replaces nil lists and maps with empty ones so the serialized
// schema is stable regardless of what could be scraped.
func (r *Record) Normalize() {
	p := &r.Project
	if p.Information == nil {
		p.Information = []UnitConfiguration{}
	}
	if p.Specifications == nil {
		p.Specifications = []Specification{}
	}
	if p.Amenities == nil {
		p.Amenities = map[string][]Amenity{}
	}
	if p.FloorPlans == nil {
		p.FloorPlans = map[string][]FloorPlan{}
	}
	if p.PriceList == nil {
		p.PriceList = []PriceRow{}
	}
	if p.PriceInsights.RentalSupply == nil {
		p.PriceInsights.RentalSupply = []RentalSupply{}
	}
	if p.PriceInsights.ComparableProjects == nil {
		p.PriceInsights.ComparableProjects = []ComparableProject{}
	}
	if p.NearbyLandmarks == nil {
		p.NearbyLandmarks = map[string][]Landmark{}
	}
	if p.Rera.ProjectRera == nil {
		p.Rera.ProjectRera = []ReraEntry{}
	}
	if p.LocationInsights.Insights == nil {
		p.LocationInsights.Insights = []string{}
	}

	b := &r.BuilderInfo
	if b.BranchOffices == nil {
		b.BranchOffices = []BranchOffice{}
	}
	if b.ManagementTeam == nil {
		b.ManagementTeam = map[string][]TeamMember{}
	}
	if b.FAQ == nil {
		b.FAQ = []FAQ{}
	}
	if b.OperatingCities == nil {
		b.OperatingCities = []City{}
	}

	if r.FAQ == nil {
		r.FAQ = []FAQ{}
	}
	if r.AllMedia.Images == nil {
		r.AllMedia.Images = map[string][]Image{}
	}
	if r.AllMedia.Videos == nil {
		r.AllMedia.Videos = []Video{}
	}
}
