package authorization

import (
	"strings"

	"github.com/casbin/casbin/v2"
)

const (
	ObjectTier      = "tier"
	ObjectScheduler = "scheduler"
	ObjectLedger    = "ledger"
	ObjectStats     = "stats"
	ObjectOrder     = "order"
)

const (
	ActionTierRecalculate  = "tier.recalculate"
	ActionTierView         = "tier.view"
	ActionSchedulerView    = "scheduler.view"
	ActionLedgerTransition = "ledger.transition"
	ActionStatsGlobal      = "stats.global"
	ActionOrderViewAny     = "order.view_any"
)

const (
	rolePrefix     = "role:"
	roleAdmin      = rolePrefix + "admin"
	roleSuperAdmin = rolePrefix + "superadmin"
)

// adminGrants is everything beyond a KOL's own data. KOLs hold no casbin
// policies; ownership checks happen in the handlers.
var adminGrants = [][2]string{
	{ObjectTier, ActionTierRecalculate},
	{ObjectTier, ActionTierView},
	{ObjectScheduler, ActionSchedulerView},
	{ObjectLedger, ActionLedgerTransition},
	{ObjectStats, ActionStatsGlobal},
	{ObjectOrder, ActionOrderViewAny},
}

// roleSubject maps a token role onto the casbin subject namespace.
func roleSubject(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" || strings.HasPrefix(role, rolePrefix) {
		return role
	}
	return rolePrefix + role
}

// ensurePolicies adds whichever built-in rules the store is missing, so
// operators may add their own rows alongside them.
func ensurePolicies(e *casbin.SyncedEnforcer) error {
	var missing [][]string
	for _, g := range adminGrants {
		rule := []string{roleAdmin, g[0], g[1]}
		ok, err := e.HasPolicy(rule)
		if err != nil {
			return err
		}
		if !ok {
			missing = append(missing, rule)
		}
	}
	if len(missing) > 0 {
		if _, err := e.AddPolicies(missing); err != nil {
			return err
		}
	}

	ok, err := e.HasGroupingPolicy(roleSuperAdmin, roleAdmin)
	if err != nil || ok {
		return err
	}
	_, err = e.AddGroupingPolicy(roleSuperAdmin, roleAdmin)
	return err
}
