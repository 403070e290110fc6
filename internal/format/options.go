package format

import (
	"fmt"
	"strconv"

	"github.com/hyperjump/emma/internal/models"
)

// QueryOption builds a dropdown entry such as "Vaping (2 abstracts)".
func QueryOption(q models.Query) models.QueryOption {
	noun := "abstracts"
	if q.Size == 1 {
		noun = "abstract"
	}
	return models.QueryOption{
		Label: fmt.Sprintf("%s (%d %s)", q.Name, q.Size, noun),
		Value: strconv.Itoa(q.ID),
	}
}

// QueryOptions builds dropdown entries for queries in order.
func QueryOptions(queries []models.Query) []models.QueryOption {
	out := make([]models.QueryOption, 0, len(queries))
	for _, q := range queries {
		out = append(out, QueryOption(q))
	}
	return out
}

// BackgroundOptions offers the first query only; no other background corpus is scored.
func BackgroundOptions(queries []models.Query) []models.QueryOption {
	if len(queries) == 0 {
		return []models.QueryOption{}
	}
	return QueryOptions(queries[:1])
}

// ForegroundOptions offers every query after the background corpus.
func ForegroundOptions(queries []models.Query) []models.QueryOption {
	if len(queries) <= 1 {
		return []models.QueryOption{}
	}
	return QueryOptions(queries[1:])
}
