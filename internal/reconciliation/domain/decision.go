package domain

import (
	"time"

	attributiondomain "github.com/smallbiznis/kolaffiliate/internal/attribution/domain"
)

// DefaultRecentClickWindow is how long after a click a purchase of a
// different product is still credited to the KOL.
const DefaultRecentClickWindow = 30 * time.Minute

const (
	ReasonNoAttribution        = "no_affiliate_attribution"
	ReasonMissingKolOrLink     = "missing_kol_or_link"
	ReasonExpired              = "attribution_expired"
	ReasonGeneralRecentClick   = "general_attribution_recent_click"
	ReasonMismatchWindowClosed = "product_mismatch_window_expired"
	ReasonProductMatch         = "product_match"
	ReasonGeneralOrder         = "general_order_attribution"

	// Raised after the per-item decision, when the credited link or KOL no
	// longer qualifies or the named click is not theirs.
	ReasonLinkNotFound   = "link_not_found"
	ReasonKolNotApproved = "kol_not_approved"
	ReasonClickNotFound  = "click_not_found"
)

type Decision struct {
	Attribute bool
	Reason    string
	Type      attributiondomain.Type
}

// ShouldAttributeItem decides a single order line against the visitor's
// attribution. Rules apply in order and the first match wins.
func ShouldAttributeItem(item OrderItem, attr *attributiondomain.ClientAttribution, now time.Time, window time.Duration) Decision {
	if attr == nil {
		return Decision{Reason: ReasonNoAttribution}
	}
	if attr.KolID == 0 || attr.AffiliateID == 0 {
		return Decision{Reason: ReasonMissingKolOrLink}
	}
	if now.After(attr.ExpiresAt) {
		return Decision{Reason: ReasonExpired}
	}
	if attr.ProductID != nil && *attr.ProductID != item.ProductID {
		if now.Sub(attr.Timestamp) <= window {
			return Decision{Attribute: true, Reason: ReasonGeneralRecentClick, Type: attributiondomain.TypeGeneral}
		}
		return Decision{Reason: ReasonMismatchWindowClosed}
	}
	if attr.ProductID == nil {
		return Decision{Attribute: true, Reason: ReasonGeneralOrder, Type: attributiondomain.TypeGeneral}
	}
	return Decision{Attribute: true, Reason: ReasonProductMatch, Type: attributiondomain.TypeSpecific}
}
