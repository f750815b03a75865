package crm

import (
	"strings"
	"time"
)

// Client is a CRM client record as seen by the matchmaking engine. Owned by
// the CRM web layer; read-only here.
type Client struct {
	ID           string
	Name         string
	Intent       string
	BudgetMin    *float64
	BudgetMax    *float64
	BedroomsMin  *int
	BedroomsMax  *int
	PropertyType string
	Locations    []string
	Amenities    []string
	Notes        string
	Comments     []Comment
}

// Comment is a free-form note left on a client, newest first.
type Comment struct {
	Body      string
	CreatedAt time.Time
}

const freeTextSeparator = "\n---\n"

// FreeText concatenates the structured communication notes with the client's
// comments (reverse-chronological) into the text handed to preference
// extraction.
func (c *Client) FreeText() string {
	parts := make([]string, 0, len(c.Comments)+1)

	if notes := strings.TrimSpace(c.Notes); notes != "" {
		parts = append(parts, notes)
	}

	for _, comment := range c.Comments {
		body := strings.TrimSpace(comment.Body)
		if body == "" {
			continue
		}
		parts = append(parts, body)
	}

	return strings.Join(parts, freeTextSeparator)
}

// Property is a listed property record. Read-only to the engine.
type Property struct {
	ID              string
	Type            string
	TransactionType string
	Price           *float64
	City            string
	District        string
	Bedrooms        *int
	Bathrooms       *int
	SizeSQM         *float64
	Amenities       []string
	Condition       string
	Description     string
}

// FeatureList flattens the property attributes the semantic layer may quote
// as evidence: amenities plus condition.
func (p *Property) FeatureList() []string {
	features := make([]string, 0, len(p.Amenities)+1)
	features = append(features, p.Amenities...)
	if cond := strings.TrimSpace(p.Condition); cond != "" {
		features = append(features, "condition: "+cond)
	}
	return features
}
