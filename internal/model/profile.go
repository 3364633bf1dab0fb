package model

// Profile holds the structured company data extracted from a candidate's
// website. Extraction is best-effort: any field may be empty and absence is
// not an error.
type Profile struct {
	CompanyName    string            `json:"company_name,omitempty"`
	WebsiteURL     string            `json:"website_url,omitempty"`
	Description    string            `json:"description,omitempty"`
	Industry       string            `json:"industry,omitempty"`
	Location       string            `json:"location,omitempty"`
	CompanySize    string            `json:"company_size,omitempty"`
	FoundedYear    string            `json:"founded_year,omitempty"`
	TargetAudience string            `json:"target_audience,omitempty"`
	KeyFeatures    []string          `json:"key_features,omitempty"`
	PainPoints     []string          `json:"pain_points,omitempty"`
	RecentNews     string            `json:"recent_news,omitempty"`
	SocialLinks    map[string]string `json:"social_links,omitempty"`
	Email          string            `json:"email,omitempty"`
	ContactName    string            `json:"contact_name,omitempty"`
	Phone          string            `json:"phone,omitempty"`
}

// Empty reports whether no field was extracted at all.
func (p Profile) Empty() bool {
	return p.CompanyName == "" && p.Description == "" && p.Industry == "" &&
		p.Location == "" && p.Email == "" && len(p.KeyFeatures) == 0 &&
		len(p.PainPoints) == 0 && p.RecentNews == "" && p.TargetAudience == ""
}
