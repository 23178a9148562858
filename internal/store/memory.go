// internal/store/memory.go
//
// In-process Store used by the orchestrator unit tests.  Behaves like SQL
// with respect to the execution policy: pretend suppresses every write and
// reads always reflect current contents.
package store

import (
	"context"
	"sort"

	"github.com/aspc/piccolo/internal/shell"
)

// Memory implements Store over plain maps.  Not safe for concurrent use;
// the execution model is single-threaded.
type Memory struct {
	policy shell.Policy

	Users     map[string]User
	Sites     map[string]Site
	Domains   map[string]Domain
	Databases map[string]Database
	Members   map[string]map[string]bool // shortname → usernames
}

func NewMemory(policy shell.Policy) *Memory {
	return &Memory{
		policy:    policy,
		Users:     make(map[string]User),
		Sites:     make(map[string]Site),
		Domains:   make(map[string]Domain),
		Databases: make(map[string]Database),
		Members:   make(map[string]map[string]bool),
	}
}

// SetPolicy swaps the execution policy.  The CLI test harness reuses one
// Memory across invocations that carry different flags.
func (m *Memory) SetPolicy(policy shell.Policy) { m.policy = policy }

func (m *Memory) GetUser(_ context.Context, username string) (*User, error) {
	if u, ok := m.Users[username]; ok {
		return &u, nil
	}
	return nil, nil
}

func (m *Memory) AddUser(_ context.Context, u *User) error {
	if m.policy.Pretend {
		return nil
	}
	m.Users[u.Username] = *u
	return nil
}

func (m *Memory) DeleteUser(_ context.Context, username string) error {
	if m.policy.Pretend {
		return nil
	}
	delete(m.Users, username)
	for _, members := range m.Members {
		delete(members, username)
	}
	return nil
}

func (m *Memory) ListUsers(_ context.Context) ([]User, error) {
	out := make([]User, 0, len(m.Users))
	for _, name := range sortedKeys(m.Users) {
		out = append(out, m.Users[name])
	}
	return out, nil
}

func (m *Memory) GetSite(_ context.Context, shortname string) (*Site, error) {
	if s, ok := m.Sites[shortname]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *Memory) AddSite(_ context.Context, s *Site) error {
	if m.policy.Pretend {
		return nil
	}
	m.Sites[s.Shortname] = *s
	return nil
}

func (m *Memory) DeleteSite(_ context.Context, shortname string) error {
	if m.policy.Pretend {
		return nil
	}
	delete(m.Sites, shortname)
	delete(m.Members, shortname)
	for name, d := range m.Domains {
		if d.SiteShortname == shortname {
			delete(m.Domains, name)
		}
	}
	for name, d := range m.Databases {
		if d.SiteShortname == shortname {
			delete(m.Databases, name)
		}
	}
	return nil
}

func (m *Memory) ListSites(_ context.Context) ([]Site, error) {
	out := make([]Site, 0, len(m.Sites))
	for _, name := range sortedKeys(m.Sites) {
		out = append(out, m.Sites[name])
	}
	return out, nil
}

func (m *Memory) GetDomain(_ context.Context, domainName string) (*Domain, error) {
	if d, ok := m.Domains[domainName]; ok {
		return &d, nil
	}
	return nil, nil
}

func (m *Memory) AddDomain(_ context.Context, d *Domain) error {
	if m.policy.Pretend {
		return nil
	}
	m.Domains[d.DomainName] = *d
	return nil
}

func (m *Memory) DeleteDomain(_ context.Context, domainName string) error {
	if m.policy.Pretend {
		return nil
	}
	delete(m.Domains, domainName)
	return nil
}

func (m *Memory) DomainsBySite(_ context.Context, shortname string) ([]Domain, error) {
	var out []Domain
	for _, name := range sortedKeys(m.Domains) {
		if m.Domains[name].SiteShortname == shortname {
			out = append(out, m.Domains[name])
		}
	}
	return out, nil
}

func (m *Memory) GetDatabase(_ context.Context, dbname string) (*Database, error) {
	if d, ok := m.Databases[dbname]; ok {
		return &d, nil
	}
	return nil, nil
}

func (m *Memory) AddDatabase(_ context.Context, d *Database) error {
	if m.policy.Pretend {
		return nil
	}
	m.Databases[d.DBName] = *d
	return nil
}

func (m *Memory) DeleteDatabase(_ context.Context, dbname string) error {
	if m.policy.Pretend {
		return nil
	}
	delete(m.Databases, dbname)
	return nil
}

func (m *Memory) DatabasesBySite(_ context.Context, shortname string) ([]Database, error) {
	var out []Database
	for _, name := range sortedKeys(m.Databases) {
		if m.Databases[name].SiteShortname == shortname {
			out = append(out, m.Databases[name])
		}
	}
	return out, nil
}

func (m *Memory) HasMember(_ context.Context, shortname, username string) (bool, error) {
	return m.Members[shortname][username], nil
}

func (m *Memory) AddMember(_ context.Context, shortname, username string) error {
	if m.policy.Pretend {
		return nil
	}
	if m.Members[shortname] == nil {
		m.Members[shortname] = make(map[string]bool)
	}
	m.Members[shortname][username] = true
	return nil
}

func (m *Memory) RemoveMember(_ context.Context, shortname, username string) error {
	if m.policy.Pretend {
		return nil
	}
	delete(m.Members[shortname], username)
	return nil
}

func (m *Memory) MembersOfSite(ctx context.Context, shortname string) ([]User, error) {
	var out []User
	for _, name := range sortedKeys(m.Members[shortname]) {
		if u, ok := m.Users[name]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *Memory) SitesOfUser(_ context.Context, username string) ([]Site, error) {
	var out []Site
	for _, shortname := range sortedKeys(m.Members) {
		if m.Members[shortname][username] {
			if s, ok := m.Sites[shortname]; ok {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
