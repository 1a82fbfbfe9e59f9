package conversation

import (
	"context"
	"strings"
	"time"
)

// GuestStatus describes the guest's relationship to the property at the time
// a message arrives. It gates which business rules apply.
type GuestStatus string

const (
	GuestActive       GuestStatus = "Active"
	GuestPreArrival   GuestStatus = "PreArrival"
	GuestPostCheckout GuestStatus = "PostCheckout"
	GuestCancelled    GuestStatus = "Cancelled"
	GuestUnregistered GuestStatus = "Unregistered"
)

// Service is a bookable or requestable offering of a property.
type Service struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price,omitempty"`
	Available   bool    `json:"available"`
}

// MenuItem is one food or beverage entry a guest can order.
type MenuItem struct {
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Price     float64 `json:"price,omitempty"`
	Available bool    `json:"available"`
}

// ConfigSource is one block of property-configured knowledge (FAQ answers,
// policies, amenity details) that grounds model responses. Higher priority
// sources are presented to the model first.
type ConfigSource struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	Priority int    `json:"priority"`
}

// TenantProfile is everything the pipeline needs to know about a property to
// decide on a message: its catalog, its configured knowledge, and its hours.
type TenantProfile struct {
	ID            string
	Name          string
	Services      []Service
	MenuItems     []MenuItem
	RequestItems  []string
	ConfigSources []ConfigSource

	// Local business hours, 24h clock. Zero values fall back to 8-20.
	BusinessHoursStart int
	BusinessHoursEnd   int
}

// TenantStore resolves tenant profiles. Backed elsewhere by the property
// management tables; tests use a fixture implementation.
type TenantStore interface {
	GetProfile(ctx context.Context, tenantID string) (*TenantProfile, error)
}

// WithinBusinessHours reports whether t falls inside the property's staffed
// hours. Used to bias clarification strategies toward escalation off-hours.
func (p *TenantProfile) WithinBusinessHours(t time.Time) bool {
	start, end := p.BusinessHoursStart, p.BusinessHoursEnd
	if start == 0 && end == 0 {
		start, end = 8, 20
	}
	hour := t.Hour()
	return hour >= start && hour < end
}

// OffersServiceLike reports whether any available service name or category
// contains one of the given fragments, case-insensitively.
func (p *TenantProfile) OffersServiceLike(fragments ...string) bool {
	for _, svc := range p.Services {
		if !svc.Available {
			continue
		}
		name := strings.ToLower(svc.Name)
		category := strings.ToLower(svc.Category)
		for _, frag := range fragments {
			frag = strings.ToLower(frag)
			if strings.Contains(name, frag) || strings.Contains(category, frag) {
				return true
			}
		}
	}
	return false
}
