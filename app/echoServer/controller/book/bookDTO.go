package book

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	bookrepo "github.com/NasirKhan521436/RestFul-Library-API/repository/book"
)

type CreateBookReq struct {
	Title         string   `json:"title" validate:"required"`
	Author        string   `json:"author" validate:"required"`
	ISBN          string   `json:"isbn" validate:"required"`
	TotalCopies   int64    `json:"total_copies" validate:"required,gte=1"`
	Genre         []string `json:"genre" validate:"required,min=1,dive,required"`
	PublishedYear *int     `json:"published_year,omitempty"`
}

type UpdateBookReq struct {
	Title         *string  `json:"title,omitempty"`
	Author        *string  `json:"author,omitempty"`
	ISBN          *string  `json:"isbn,omitempty"`
	TotalCopies   *int64   `json:"total_copies,omitempty" validate:"omitempty,gte=1"`
	Genre         []string `json:"genre,omitempty" validate:"omitempty,min=1,dive,required"`
	PublishedYear *int     `json:"published_year,omitempty"`
}

type fieldSpec struct{ numeric bool }

var filterable = map[string]fieldSpec{
	"title":            {},
	"author":           {},
	"isbn":             {},
	"genre":            {},
	"published_year":   {numeric: true},
	"total_copies":     {numeric: true},
	"available_copies": {numeric: true},
}

var allowedOps = map[string]bool{
	"eq":  true,
	"gt":  true,
	"gte": true,
	"lt":  true,
	"lte": true,
}

var sortable = map[string]bool{
	"title":            true,
	"author":           true,
	"isbn":             true,
	"published_year":   true,
	"total_copies":     true,
	"available_copies": true,
	"created_at":       true,
}

// parseListQuery turns ?author=X&published_year[gte]=2000&sort=-title&page=2
// into repository list params. The second result reports whether a page was
// asked for explicitly.
func parseListQuery(vals url.Values) (bookrepo.ListParams, bool, error) {
	var p bookrepo.ListParams
	pageRequested := false

	for key, vv := range vals {
		if len(vv) == 0 || vv[0] == "" {
			continue
		}
		raw := vv[0]

		switch key {
		case "page":
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				return p, false, fmt.Errorf("invalid page %q", raw)
			}
			p.Page = n
			pageRequested = true
			continue
		case "limit":
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				return p, false, fmt.Errorf("invalid limit %q", raw)
			}
			p.Limit = n
			continue
		case "sort":
			for _, s := range strings.Split(raw, ",") {
				s = strings.TrimSpace(s)
				if s == "" {
					continue
				}
				if !sortable[strings.TrimPrefix(s, "-")] {
					return p, false, fmt.Errorf("cannot sort by %q", s)
				}
				p.Sort = append(p.Sort, s)
			}
			continue
		}

		field, op := key, "eq"
		if i := strings.IndexByte(key, '['); i >= 0 && strings.HasSuffix(key, "]") {
			field, op = key[:i], key[i+1:len(key)-1]
		}
		spec, ok := filterable[field]
		if !ok {
			return p, false, fmt.Errorf("cannot filter by %q", field)
		}
		if !allowedOps[op] || (op != "eq" && !spec.numeric) {
			return p, false, fmt.Errorf("operator %q not valid for %q", op, field)
		}

		var val any = raw
		if spec.numeric {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return p, false, fmt.Errorf("invalid number %q for %q", raw, field)
			}
			val = n
		}
		p.Filters = append(p.Filters, bookrepo.Filter{Field: field, Op: op, Value: val})
	}

	return p, pageRequested, nil
}
