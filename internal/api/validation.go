package api

import (
	"fmt"
	"strings"
	"time"
)

const maxCategoriesPerSearch = 12

func validateSearchRequest(req *SearchRequest) error {
	req.City = strings.TrimSpace(req.City)
	req.Date = strings.TrimSpace(req.Date)

	if req.City == "" {
		return fmt.Errorf("city is required")
	}
	if req.Date == "" {
		return fmt.Errorf("date is required")
	}
	if !validDate(req.Date) {
		return fmt.Errorf("date must be in YYYY-MM-DD format")
	}

	var cleaned []string
	for _, c := range req.Categories {
		if c = strings.TrimSpace(c); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	if len(cleaned) == 0 {
		return fmt.Errorf("at least one category is required")
	}
	if len(cleaned) > maxCategoriesPerSearch {
		return fmt.Errorf("at most %d categories are allowed", maxCategoriesPerSearch)
	}
	req.Categories = cleaned

	return nil
}

func validDate(date string) bool {
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}
