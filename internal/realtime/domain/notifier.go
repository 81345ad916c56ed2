package domain

const (
	EventClick      = "click"
	EventConversion = "conversion"
	EventTierChange = "tier_change"
)

// Notifier receives fire-and-forget stats events. Implementations must not
// block the caller.
type Notifier interface {
	NotifyKol(kolID int64, event string)
}
