// internal/site/domain.go
//
// Domain attachment and detachment.
//
// Context
// -------
// Domains are globally unique across all sites and every site keeps at
// least one.  Attachment writes a per-domain nginx fragment into the
// site's <shortname>_domains directory; detachment removes it.  All
// pre-condition checks run strictly before any external action so a
// rejected request leaves nginx untouched.
package site

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/aspc/piccolo/internal/store"
)

var (
	ErrDomainExists       = errors.New("domain already exists")
	ErrDomainDoesNotExist = errors.New("domain does not exist")
	ErrMismatch           = errors.New("domain belongs to a different site")
	ErrMinimumDomains     = errors.New("site must keep at least one domain")
)

// CreateDomain attaches domainName to rec and reloads nginx.
func (m *Manager) CreateDomain(ctx context.Context, domainName string, rec *store.Site) error {
	if existing, err := m.store.GetDomain(ctx, domainName); err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("%w: %s belongs to site %s",
			ErrDomainExists, domainName, existing.SiteShortname)
	}

	if err := m.store.AddDomain(ctx, &store.Domain{
		DomainName:    domainName,
		SiteShortname: rec.Shortname,
	}); err != nil {
		return err
	}

	vars := m.vars(rec)
	vars["$DOMAIN_NAME"] = domainName
	dest := filepath.Join(m.domainConfDir(rec.Shortname), domainName+".conf")
	if err := m.renderer.CopyFile("site.nginx.domain.conf", dest, vars); err != nil {
		return err
	}
	if err := m.runner.Run(ctx, "service nginx reload"); err != nil {
		return err
	}
	m.log.Infow("added domain", "domain", domainName, "site", rec.Shortname)
	return nil
}

// DeleteDomain detaches domainName from rec.  The last remaining domain
// of a site can never be removed.
func (m *Manager) DeleteDomain(ctx context.Context, domainName string, rec *store.Site) error {
	existing, err := m.store.GetDomain(ctx, domainName)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%w: %s", ErrDomainDoesNotExist, domainName)
	}
	if existing.SiteShortname != rec.Shortname {
		return fmt.Errorf("%w: %s belongs to %s, not %s",
			ErrMismatch, domainName, existing.SiteShortname, rec.Shortname)
	}
	domains, err := m.store.DomainsBySite(ctx, rec.Shortname)
	if err != nil {
		return err
	}
	if len(domains) < 2 {
		return fmt.Errorf("%w: %s is the last domain of %s",
			ErrMinimumDomains, domainName, rec.Shortname)
	}

	conf := filepath.Join(m.domainConfDir(rec.Shortname), domainName+".conf")
	if err := m.runner.Run(ctx, "rm "+conf); err != nil {
		return err
	}
	if err := m.runner.Run(ctx, "service nginx reload"); err != nil {
		return err
	}
	if err := m.store.DeleteDomain(ctx, domainName); err != nil {
		return err
	}
	m.log.Infow("removed domain", "domain", domainName, "site", rec.Shortname)
	return nil
}
