package testutil

import (
	"encoding/json"
	"net/http"
)

// SearchItem mirrors the fields the sources read from a repository search
// response.
type SearchItem struct {
	FullName string `json:"full_name"`
	Stars    int    `json:"stargazers_count"`
	URL      string `json:"html_url"`
}

// ReplyJSON writes doc as a JSON response with the given status code.
func ReplyJSON(w http.ResponseWriter, code int, doc any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(doc)
}

// ReplyStatus writes an error status with a minimal JSON body.
func ReplyStatus(w http.ResponseWriter, code int) {
	ReplyJSON(w, code, map[string]string{"message": http.StatusText(code)})
}

// ReplyPrices writes a simple-price document: {coin: {"usd": value}}.
func ReplyPrices(w http.ResponseWriter, quotes map[string]float64) {
	doc := make(map[string]map[string]float64, len(quotes))
	for coin, usd := range quotes {
		doc[coin] = map[string]float64{"usd": usd}
	}
	ReplyJSON(w, http.StatusOK, doc)
}

// ReplySearch writes a repository search document with the given items.
func ReplySearch(w http.ResponseWriter, items ...SearchItem) {
	if items == nil {
		items = []SearchItem{}
	}
	ReplyJSON(w, http.StatusOK, map[string]any{
		"total_count": len(items),
		"items":       items,
	})
}
