package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docvault/viewer-api/internal/core"
	domainauth "github.com/docvault/viewer-api/internal/domain/auth"
)

// DenialReasonNotPurchased is attached to blocked audit entries when no paid
// order exists for the user/resource pair.
const DenialReasonNotPurchased = "not_purchased"

// AccessGateOptions groups dependencies for AccessGate.
type AccessGateOptions struct {
	Purchases core.PurchaseRepository // Required: purchase ledger
	Logger    *slog.Logger            // Optional: structured logger
}

// AccessGate answers the entitlement question: may this user view this
// resource right now? It is read-only and side-effect-free; callers log the
// outcome. The ledger is read fresh on every call so a purchase completing
// mid-request is honored by the next check.
type AccessGate struct {
	purchases core.PurchaseRepository
	logger    *slog.Logger
}

// NewAccessGate constructs a new AccessGate.
func NewAccessGate(opts AccessGateOptions) *AccessGate {
	if opts.Purchases == nil {
		panic("PurchaseRepository is required")
	}
	return &AccessGate{
		purchases: opts.Purchases,
		logger:    opts.Logger,
	}
}

// AccessDecision is the outcome of an entitlement check. Reason is set only
// on denial.
type AccessDecision struct {
	HasAccess bool
	Reason    string
}

// CheckAccess evaluates entitlement for the user/resource pair. Admins are
// granted unconditionally; everyone else needs a paid purchase row. Resource
// existence is the caller's concern, not the gate's.
func (g *AccessGate) CheckAccess(
	ctx context.Context,
	userID string,
	role domainauth.Role,
	resourceID string,
) (AccessDecision, error) {
	if role == domainauth.RoleAdmin {
		return AccessDecision{HasAccess: true}, nil
	}

	paid, err := g.purchases.HasPaid(ctx, userID, resourceID)
	if err != nil {
		return AccessDecision{}, fmt.Errorf("check purchase: %w", err)
	}
	if !paid {
		if g.logger != nil {
			g.logger.DebugContext(ctx, "entitlement denied",
				"user_id", userID,
				"resource_id", resourceID,
				"reason", DenialReasonNotPurchased,
			)
		}
		return AccessDecision{Reason: DenialReasonNotPurchased}, nil
	}
	return AccessDecision{HasAccess: true}, nil
}
