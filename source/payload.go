package source

// PricePayload is the aggregate-facing payload of the crypto price source.
type PricePayload struct {
	Service  string   `json:"service"`
	Datasets []string `json:"datasets"`
}

// Repo is one repository entry in a search-based payload.
type Repo struct {
	Name  string `json:"name"`
	Stars int    `json:"stars"`
	URL   string `json:"url"`
}

// StatsPayload is the payload of the repository-stats source. USDRate is
// carried for wire compatibility with older dashboard clients and is
// always null.
type StatsPayload struct {
	Service string   `json:"service"`
	USDRate *float64 `json:"usd_rate"`
	Repos   []Repo   `json:"repos"`
}

// LineagePayload is the payload of the recent-repositories source.
type LineagePayload struct {
	Service string `json:"service"`
	Repos   []Repo `json:"repos"`
}
