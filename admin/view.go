package admin

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/eringen/folio/content"
)

// PageSize is the number of records on one list page.
const PageSize = 10

// View is the derived, displayable slice of a collection.
type View[R content.Record] struct {
	// Visible is every record passing the search and filters, sorted.
	Visible []R
	// Items is the current page of Visible.
	Items      []R
	Page       int
	TotalPages int
}

// Derive filters, sorts and paginates records for st. The requested page is
// clamped to the number of pages.
func Derive[R content.Record](records []R, st ListState) View[R] {
	st = st.normalized()
	keyword := strings.ToLower(strings.TrimSpace(st.Search))

	visible := make([]R, 0, len(records))
	for _, r := range records {
		if keyword != "" && !matches(r, keyword) {
			continue
		}
		switch st.Status {
		case StatusPublished:
			if r.IsDraft() {
				continue
			}
		case StatusDraft:
			if !r.IsDraft() {
				continue
			}
		}
		switch st.Featured {
		case FeaturedOnly:
			if !r.IsFeatured() {
				continue
			}
		case FeaturedNormal:
			if r.IsFeatured() {
				continue
			}
		}
		visible = append(visible, r)
	}

	sortRecords(visible, st.Sort)

	totalPages := max(1, (len(visible)+PageSize-1)/PageSize)
	page := min(st.Page, totalPages)
	start := (page - 1) * PageSize
	end := min(start+PageSize, len(visible))

	return View[R]{
		Visible:    visible,
		Items:      visible[start:end],
		Page:       page,
		TotalPages: totalPages,
	}
}

func matches(r content.Record, keyword string) bool {
	for _, f := range r.SearchFields() {
		if f != "" && strings.Contains(strings.ToLower(f), keyword) {
			return true
		}
	}
	return false
}

func sortRecords[R content.Record](records []R, order string) {
	switch order {
	case SortTitleAsc, SortTitleDesc:
		col := collate.New(language.Und)
		sign := 1
		if order == SortTitleDesc {
			sign = -1
		}
		slices.SortStableFunc(records, func(a, b R) int {
			return sign * col.CompareString(a.GetTitle(), b.GetTitle())
		})
	default:
		asc := order == SortDateAsc
		slices.SortStableFunc(records, func(a, b R) int {
			at, bt := content.DateMillis(a.GetDate()), content.DateMillis(b.GetDate())
			if asc {
				return cmp.Compare(at, bt)
			}
			return cmp.Compare(bt, at)
		})
	}
}

func ids[R content.Record](records []R) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.GetID()
	}
	return out
}
