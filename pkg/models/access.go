package models

import "time"

// AccessType represents the access tier of a piece of content
type AccessType string

// AccessType constants
const (
	AccessTypeFree AccessType = "free"
	AccessTypeRent AccessType = "rent"
	AccessTypeVIP  AccessType = "vip"
)

// AccessDescriptor describes how a piece of content is gated. Episode-level
// descriptors, when present, override the series-level descriptor.
type AccessDescriptor struct {
	Type            AccessType `json:"type" db:"access_type"`
	ExcludeFromPlan bool       `json:"exclude_from_plan" db:"exclude_from_plan"`
	PriceCents      int        `json:"price_cents,omitempty" db:"price_cents"`
	RentalDays      int        `json:"rental_days,omitempty" db:"rental_days"`
}

// IsFree reports whether the content needs no entitlement at all
func (a AccessDescriptor) IsFree() bool {
	return a.Type == AccessTypeFree || a.Type == ""
}

// Subscription represents a viewer's active plan
type Subscription struct {
	ID          string    `json:"id" db:"id"`
	ViewerID    string    `json:"viewer_id" db:"viewer_id"`
	PlanName    string    `json:"plan_name" db:"plan_name"`
	DeviceLimit int       `json:"device_limit" db:"device_limit"`
	ExpiresAt   time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Active reports whether the subscription is currently valid
func (s *Subscription) Active(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}

// Rental represents a time-limited purchase of a single piece of content
type Rental struct {
	ID          string    `json:"id" db:"id"`
	ViewerID    string    `json:"viewer_id" db:"viewer_id"`
	MediaID     string    `json:"media_id" db:"media_id"`
	MediaType   string    `json:"media_type" db:"media_type"`
	PriceCents  int       `json:"price_cents" db:"price_cents"`
	DeviceLimit int       `json:"device_limit" db:"device_limit"`
	ExpiresAt   time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Active reports whether the rental is currently valid
func (r *Rental) Active(now time.Time) bool {
	return r != nil && now.Before(r.ExpiresAt)
}

// Entitlements is the resolved entitlement state for one viewer against
// one piece of content.
type Entitlements struct {
	Loaded          bool `json:"loaded"`
	HasSubscription bool `json:"has_subscription"`
	HasRental       bool `json:"has_rental"`
	DeviceLimit     int  `json:"device_limit"`
}

// ResolveEntitlements combines a viewer's subscription and content rental
// into an Entitlements snapshot. An active rental's device limit takes
// precedence over the subscription's.
func ResolveEntitlements(sub *Subscription, rental *Rental, now time.Time) Entitlements {
	e := Entitlements{Loaded: true}
	if sub.Active(now) {
		e.HasSubscription = true
		e.DeviceLimit = sub.DeviceLimit
	}
	if rental.Active(now) {
		e.HasRental = true
		e.DeviceLimit = rental.DeviceLimit
	}
	return e
}
