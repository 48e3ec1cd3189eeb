package auth

import (
	"context"
	"errors"

	apperrors "github.com/target/mmk-ldap-auth/internal/errors"
)

// DefaultMaxDepth bounds manager-chain walks. Directory data is not guaranteed to be
// acyclic, so every walk has a hard ceiling.
const DefaultMaxDepth = 3

// Resolver materializes a distinguished-name reference into an Identity.
// A live directory connection implements it.
type Resolver interface {
	LookupByDN(ctx context.Context, dn string) (*Identity, error)
}

// IsReportTo walks the manager chain starting at id and reports whether candidate
// appears in it. id itself is depth 1; the candidate must sit at depth <= maxDepth.
//
// Missing managers are resolved through r and written back into the chain. A nil r
// restricts the walk to already-resolved managers. Chain end, depth exhaustion, a
// repeated DN, or a resolution failure all yield false.
// DNs are compared case-sensitively, exactly as the directory returns them.
func (id *Identity) IsReportTo(ctx context.Context, r Resolver, candidate *Identity, maxDepth int) bool {
	if id == nil || candidate == nil || candidate.DN == "" {
		return false
	}
	maxDepth = normalizeDepth(maxDepth)

	arena := map[string]*Identity{id.DN: id}
	cur := id
	for depth := 1; depth < maxDepth; depth++ {
		managerDN := cur.managerDN()
		if managerDN == "" {
			return false
		}
		if managerDN == candidate.DN {
			return true
		}
		next := cur.resolveManager(ctx, r, arena)
		if next == nil {
			return false
		}
		cur = next
	}
	return false
}

// IsReportToFunc walks the manager chain like IsReportTo but matches each resolved
// manager with match. Use it for comparisons that need the manager's attributes.
func (id *Identity) IsReportToFunc(ctx context.Context, r Resolver, maxDepth int, match func(*Identity) bool) bool {
	if id == nil || match == nil {
		return false
	}
	maxDepth = normalizeDepth(maxDepth)

	arena := map[string]*Identity{id.DN: id}
	cur := id
	for depth := 1; depth < maxDepth; depth++ {
		next := cur.resolveManager(ctx, r, arena)
		if next == nil {
			return false
		}
		if match(next) {
			return true
		}
		cur = next
	}
	return false
}

// IsReportToByEmail walks only already-resolved managers and compares their mail.
// It never contacts the directory; an exhausted chain is a definite no.
func (id *Identity) IsReportToByEmail(mail string, maxDepth int) bool {
	if mail == "" {
		return false
	}
	return id.IsReportToFunc(context.Background(), nil, maxDepth, func(m *Identity) bool {
		return m.Mail == mail
	})
}

// IsReportToByUserName walks only already-resolved managers and compares login names.
func (id *Identity) IsReportToByUserName(loginName string, maxDepth int) bool {
	if loginName == "" {
		return false
	}
	return id.IsReportToFunc(context.Background(), nil, maxDepth, func(m *Identity) bool {
		return m.LoginName == loginName
	})
}

// managerDN prefers the manager attribute and falls back to an already resolved Manager.
func (id *Identity) managerDN() string {
	if id.ManagerDN != "" || id.Manager == nil {
		return id.ManagerDN
	}
	return id.Manager.DN
}

// resolveManager returns the manager of id, resolving and caching it when needed.
// It returns nil when the chain ends, loops, or cannot be resolved.
func (id *Identity) resolveManager(ctx context.Context, r Resolver, arena map[string]*Identity) *Identity {
	if id.Manager == nil {
		if id.ManagerDN == "" || r == nil || ctx.Err() != nil {
			return nil
		}
		if _, looped := arena[id.ManagerDN]; looped {
			return nil
		}
		m, err := r.LookupByDN(ctx, id.ManagerDN)
		if err != nil || m == nil {
			return nil
		}
		id.Manager = m
	}
	if _, looped := arena[id.Manager.DN]; looped {
		return nil
	}
	arena[id.Manager.DN] = id.Manager
	return id.Manager
}

// HasReport searches the already-resolved reports tree depth first. Unresolved reports
// are treated as no reports; the directory is never contacted.
func (id *Identity) HasReport(pred func(*Identity) bool) bool {
	if id == nil || pred == nil {
		return false
	}
	visited := map[*Identity]bool{id: true}
	var walk func(*Identity) bool
	walk = func(n *Identity) bool {
		for _, report := range n.Reports {
			if report == nil || visited[report] {
				continue
			}
			visited[report] = true
			if pred(report) || walk(report) {
				return true
			}
		}
		return false
	}
	return walk(id)
}

// HasReportByDN reports whether dn is among the resolved reports.
func (id *Identity) HasReportByDN(dn string) bool {
	return id.HasReport(func(r *Identity) bool { return r.DN == dn })
}

// HasReportByUserName reports whether loginName is among the resolved reports.
func (id *Identity) HasReportByUserName(loginName string) bool {
	return id.HasReport(func(r *Identity) bool { return r.LoginName == loginName })
}

// HasReportByMail reports whether mail is among the resolved reports.
func (id *Identity) HasReportByMail(mail string) bool {
	return id.HasReport(func(r *Identity) bool { return r.Mail == mail })
}

// UpdateManager resolves the direct manager through r.
func (id *Identity) UpdateManager(ctx context.Context, r Resolver) error {
	if id.ManagerDN == "" {
		id.Manager = nil
		return nil
	}
	m, err := r.LookupByDN(ctx, id.ManagerDN)
	if err != nil {
		return err
	}
	id.Manager = m
	return nil
}

// UpdateReports resolves the reports tree levels deep. Reports that no longer exist in
// the directory are skipped. Each resolved report points back to its manager.
func (id *Identity) UpdateReports(ctx context.Context, r Resolver, levels int) error {
	if levels < 1 {
		return nil
	}
	reports := make([]*Identity, 0, len(id.ReportDNs))
	for _, dn := range id.ReportDNs {
		report, err := r.LookupByDN(ctx, dn)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			return err
		}
		report.Manager = id
		reports = append(reports, report)
	}
	id.Reports = reports

	for _, report := range reports {
		if err := report.UpdateReports(ctx, r, levels-1); err != nil {
			return err
		}
	}
	return nil
}

func normalizeDepth(maxDepth int) int {
	if maxDepth <= 0 {
		return DefaultMaxDepth
	}
	return maxDepth
}
