package models

import "encoding/json"

// Role identifies one analysis role in the crew. The zero value is the
// first role in hand-off order.
type Role int

const (
	RoleDataAnalyst Role = iota
	RoleStrategyDeveloper
	RoleTradeAdvisor
	RoleRiskAdvisor
)

// Roles returns every role in hand-off order: market analysis first,
// risk assessment last.
func Roles() []Role {
	return []Role{
		RoleDataAnalyst,
		RoleStrategyDeveloper,
		RoleTradeAdvisor,
		RoleRiskAdvisor,
	}
}

// String returns the machine-readable role key
func (r Role) String() string {
	switch r {
	case RoleDataAnalyst:
		return "data_analyst"
	case RoleStrategyDeveloper:
		return "strategy_developer"
	case RoleTradeAdvisor:
		return "trade_advisor"
	case RoleRiskAdvisor:
		return "risk_advisor"
	default:
		return "unknown"
	}
}

// Display returns the human-readable role name
func (r Role) Display() string {
	switch r {
	case RoleDataAnalyst:
		return "Data Analyst"
	case RoleStrategyDeveloper:
		return "Trading Strategy Developer"
	case RoleTradeAdvisor:
		return "Trade Advisor"
	case RoleRiskAdvisor:
		return "Risk Advisor"
	default:
		return "Unknown"
	}
}

// ParseRole maps a machine-readable role key back to its value.
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles() {
		if r.String() == s {
			return r, true
		}
	}
	return 0, false
}

// MarshalJSON encodes the role as its machine-readable key
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}
