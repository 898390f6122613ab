package model

// Orchard is a single durian orchard listing as returned by the backend.
// The discovery core treats it as read-only.
type Orchard struct {
	ID              int64           `json:"id"`
	OwnerID         string          `json:"ownerId"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	History         string          `json:"history,omitempty"`
	Address         string          `json:"address"`
	PhoneNumber     string          `json:"phoneNumber,omitempty"`
	Lat             float64         `json:"lat"`
	Lng             float64         `json:"lng"`
	Types           []OrchardType   `json:"types"`
	Status          DurianStatus    `json:"status"`
	Images          []string        `json:"images"`
	Videos          []string        `json:"videos,omitempty"`
	SocialMedia     *SocialLinks    `json:"socialMedia,omitempty"`
	AdditionalCrops []string        `json:"additionalCrops,omitempty"`
	Accommodations  []Accommodation `json:"accommodations,omitempty"`
	Packages        []Package       `json:"packages,omitempty"`
	CreatedAt       string          `json:"createdAt,omitempty"`
	UpdatedAt       string          `json:"updatedAt,omitempty"`
}

// HasType reports whether t is one of the orchard's service types.
func (o *Orchard) HasType(t OrchardType) bool {
	for _, ot := range o.Types {
		if ot == t {
			return true
		}
	}
	return false
}

// SocialLinks holds optional social media handles or URLs.
type SocialLinks struct {
	Line      string `json:"line,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	TikTok    string `json:"tiktok,omitempty"`
	YouTube   string `json:"youtube,omitempty"`
}

// Accommodation is a room or homestay unit offered by an orchard.
type Accommodation struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Quantity int      `json:"quantity"`
	Images   []string `json:"images"`
}

// Package is a bookable tour package. Dates are ISO YYYY-MM-DD.
type Package struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Price     float64  `json:"price"`
	Duration  float64  `json:"duration"` // hours
	Includes  string   `json:"includes"`
	StartDate string   `json:"startDate"`
	EndDate   string   `json:"endDate"`
	Images    []string `json:"images"`
}
