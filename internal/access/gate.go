// Package access decides whether a viewer may play a piece of content and,
// when not, which call-to-action to present. Decisions here gate the UI
// only; the protected URL exchange re-validates server-side before any URL
// is released.
package access

import "github.com/openstreamhub/streamgate/pkg/models"

// CTA identifies the call-to-action shown on a locked overlay
type CTA string

// CTA constants
const (
	CTANone      CTA = "none"
	CTALogin     CTA = "login"
	CTASubscribe CTA = "subscribe"
	CTARent      CTA = "rent"
)

// Decision is the gate's verdict for one viewer against one piece of
// content. Pending is set while entitlement state has not loaded yet: the
// content is reported unlocked so no lock flashes, but playback must not
// start until Pending clears. This loading policy is deliberate and tested.
type Decision struct {
	Locked     bool `json:"locked"`
	Pending    bool `json:"pending"`
	Action     CTA  `json:"action"`
	PriceCents int  `json:"price_cents,omitempty"`
	RentalDays int  `json:"rental_days,omitempty"`
}

// Evaluate runs the gate rules in order:
//
//  1. free tier is never locked,
//  2. rent with exclude-from-plan is locked unless an active rental exists
//     (a subscription does not substitute),
//  3. rent without exclude is unlocked by subscription or rental,
//  4. subscription-only (vip) is unlocked by subscription alone.
func Evaluate(desc models.AccessDescriptor, ent models.Entitlements) Decision {
	if desc.IsFree() {
		return Decision{Locked: false, Action: CTANone}
	}

	if !ent.Loaded {
		return Decision{Locked: false, Pending: true, Action: CTANone}
	}

	switch desc.Type {
	case models.AccessTypeRent:
		if desc.ExcludeFromPlan {
			if ent.HasRental {
				return Decision{Locked: false, Action: CTANone}
			}
			return rentDecision(desc)
		}
		if ent.HasSubscription || ent.HasRental {
			return Decision{Locked: false, Action: CTANone}
		}
		return rentDecision(desc)

	case models.AccessTypeVIP:
		if ent.HasSubscription {
			return Decision{Locked: false, Action: CTANone}
		}
		return Decision{Locked: true, Action: CTASubscribe}

	default:
		// Unknown tier: treat as subscription-only rather than open
		if ent.HasSubscription {
			return Decision{Locked: false, Action: CTANone}
		}
		return Decision{Locked: true, Action: CTASubscribe}
	}
}

func rentDecision(desc models.AccessDescriptor) Decision {
	return Decision{
		Locked:     true,
		Action:     CTARent,
		PriceCents: desc.PriceCents,
		RentalDays: desc.RentalDays,
	}
}

// EvaluateForViewer is Evaluate plus the unauthenticated rule: non-free
// content for an anonymous viewer is locked behind a login prompt without
// consulting entitlements.
func EvaluateForViewer(desc models.AccessDescriptor, viewerID string, ent models.Entitlements) Decision {
	if desc.IsFree() {
		return Decision{Locked: false, Action: CTANone}
	}
	if viewerID == "" {
		return Decision{Locked: true, Action: CTALogin}
	}
	return Evaluate(desc, ent)
}
