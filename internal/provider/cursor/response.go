package cursor

import (
	"strings"

	"github.com/quotadash/quotadash/internal/models"
)

// planUsage is the included-plan block; amounts are cents.
type planUsage struct {
	Used             float64 `json:"used"`
	Limit            float64 `json:"limit"`
	TotalPercentUsed float64 `json:"totalPercentUsed"`
}

// onDemandUsage is pay-as-you-go spend in cents. Limit is nullable: nil means
// on-demand is disabled or uncapped.
type onDemandUsage struct {
	Enabled *bool    `json:"enabled,omitempty"`
	Used    float64  `json:"used"`
	Limit   *float64 `json:"limit"`
}

type individualUsage struct {
	Plan     *planUsage     `json:"plan,omitempty"`
	OnDemand *onDemandUsage `json:"onDemand,omitempty"`
}

// usageSummary is the usage-summary endpoint payload. BillingCycleEnd arrives
// as ISO 8601 or a millisecond-epoch string depending on the backend path.
type usageSummary struct {
	BillingCycleEnd string           `json:"billingCycleEnd,omitempty"`
	MembershipType  string           `json:"membershipType,omitempty"`
	IndividualUsage *individualUsage `json:"individualUsage,omitempty"`
}

// planPercentUsed returns the plan utilization, preferring the server's own
// percentage over deriving one from the cent amounts.
func (u *usageSummary) planPercentUsed() (int, bool) {
	if u.IndividualUsage == nil || u.IndividualUsage.Plan == nil {
		return 0, false
	}
	p := u.IndividualUsage.Plan
	if p.TotalPercentUsed > 0 {
		return models.RoundPercent(p.TotalPercentUsed), true
	}
	if p.Limit > 0 {
		return models.RoundPercent(p.Used / p.Limit * 100), true
	}
	return 0, true
}

func (u *usageSummary) onDemand() *onDemandUsage {
	if u.IndividualUsage == nil || u.IndividualUsage.OnDemand == nil {
		return nil
	}
	od := u.IndividualUsage.OnDemand
	if od.Enabled == nil || !*od.Enabled {
		return nil
	}
	return od
}

// membership prefers the auth/me legacy field over the usage payload.
func (u *usageSummary) membership(me *userMe) string {
	if me != nil && me.MembershipType != "" {
		return me.MembershipType
	}
	return u.MembershipType
}

// userMe is the auth/me identity payload.
type userMe struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	// Legacy field; some responses carry the plan here.
	MembershipType string `json:"membership_type,omitempty"`
}

// sessionCredentials supports the key names older releases stored the cookie
// under.
type sessionCredentials struct {
	SessionToken string `json:"session_token,omitempty"`
	Token        string `json:"token,omitempty"`
	SessionKey   string `json:"session_key,omitempty"`
	Session      string `json:"session,omitempty"`
}

func (c *sessionCredentials) effectiveToken() string {
	for _, v := range []string{c.SessionToken, c.Token, c.SessionKey, c.Session} {
		if v != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
