package worker

const (
	DefaultStartPage = 1
	DefaultEndPage   = 2
	DefaultWorkers   = 10
)

// PageRange returns the inclusive list of search pages from start to end. An
// inverted range is empty.
func PageRange(start, end int) []int {
	if end < start {
		return []int{}
	}
	pages := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}
	return pages
}
