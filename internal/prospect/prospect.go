package prospect

// EmailMessage is one message in a prospect's thread. The pipeline only ever
// writes the first element, authored by "me"; replies may be appended later.
type EmailMessage struct {
	From string `json:"from"`
	Text string `json:"text"`
}

// Prospect is the canonical outreach target produced by normalization.
//
// LinkedInURL is the unique key within a batch. Email is either a concrete
// address or EmailUnavailable, never the empty string. EmailMessages is empty
// until the prospect has passed draft generation.
type Prospect struct {
	FirstName        string         `json:"firstName"`
	LastName         string         `json:"lastName"`
	Title            string         `json:"title"`
	Seniority        string         `json:"seniority"`
	OrganizationName string         `json:"organizationName"`
	LinkedInURL      string         `json:"linkedinUrl"`
	Email            string         `json:"email"`
	Description      string         `json:"description"`
	EmailMessages    []EmailMessage `json:"emailMessages"`
}

// RawRecord is one element of the search service's raw result payload.
type RawRecord struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Title            string `json:"title"`
	Seniority        string `json:"seniority"`
	OrganizationName string `json:"organization_name"`
	LinkedInURL      string `json:"linkedin_url"`
	Email            string `json:"email"`
	Description      string `json:"description"`
}

// Campaign is a named, immutable collection of prospects with their drafted
// messages. Ownership passes to the store once created.
type Campaign struct {
	Title     string     `json:"title"`
	Prospects []Prospect `json:"prospects"`
}
