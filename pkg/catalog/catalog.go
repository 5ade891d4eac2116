// Package catalog holds the immutable registry of task handler descriptors.
//
// The catalog is built once at process start from static registrations and
// is read-only thereafter, which makes it safe for unsynchronized concurrent
// reads by the router and the execution facade.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/epicstage/Event-agent-backend-kr-sub004/pkg/schema"
)

// Domain groups handlers by business area, mirroring the task ID prefixes
// (FIN, STR, OPS, ...).
type Domain string

const (
	DomainFinance         Domain = "finance"
	DomainStrategy        Domain = "strategy"
	DomainProject         Domain = "project"
	DomainMarketing       Domain = "marketing"
	DomainMarketingAdv    Domain = "marketing_adv"
	DomainOperations      Domain = "operations"
	DomainHR              Domain = "hr"
	DomainMeetings        Domain = "meetings"
	DomainSite            Domain = "site"
	DomainProfessionalism Domain = "professionalism"
	DomainSystem          Domain = "system"
)

// HandlerFunc is the pure computation unit behind a descriptor: validated
// input in, deterministic report out, no shared state and no hidden I/O.
type HandlerFunc func(ctx context.Context, input map[string]any) (map[string]any, error)

// Risk declares the consequence profile the confirmation gate inspects.
type Risk struct {
	// Irreversible marks handlers whose effect cannot be undone
	// (cancellation, deletion, release of a held resource).
	Irreversible bool
	// PolicyChange marks handlers that alter access rights or governance rules.
	PolicyChange bool
	// AffectedDomains lists every domain the action touches. More than one
	// entry means cross-domain blast radius.
	AffectedDomains []Domain
	// MonetaryFields names the input fields carrying monetary amounts.
	// When empty, the gate falls back to a conservative default list.
	MonetaryFields []string
}

// Descriptor describes one task handler. Immutable after registration;
// identity is ID.
type Descriptor struct {
	ID      string
	Name    string
	Domain  Domain
	Tags    []string
	Input   schema.Schema
	Output  schema.Schema
	Risk    Risk
	Execute HandlerFunc
}

// Builder accumulates registrations before the catalog is frozen.
type Builder struct {
	descriptors map[string]*Descriptor
}

// NewBuilder creates an empty catalog builder.
func NewBuilder() *Builder {
	return &Builder{descriptors: make(map[string]*Descriptor)}
}

// Register adds a descriptor. IDs must be unique and every descriptor needs
// an execute function and at least one tag for intent matching.
func (b *Builder) Register(d Descriptor) error {
	if d.ID == "" {
		return fmt.Errorf("descriptor without ID")
	}
	if _, exists := b.descriptors[d.ID]; exists {
		return fmt.Errorf("duplicate handler ID %s", d.ID)
	}
	if d.Execute == nil {
		return fmt.Errorf("handler %s has no execute function", d.ID)
	}
	if len(d.Tags) == 0 {
		return fmt.Errorf("handler %s has no tags", d.ID)
	}

	// Normalize tags once so the scorer can match case-insensitively.
	tags := make([]string, 0, len(d.Tags))
	seen := make(map[string]bool, len(d.Tags))
	for _, tag := range d.Tags {
		norm := strings.ToLower(strings.TrimSpace(tag))
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		tags = append(tags, norm)
	}
	d.Tags = tags

	copied := d
	b.descriptors[d.ID] = &copied
	return nil
}

// MustRegister is Register for static registration tables; it panics on error.
func (b *Builder) MustRegister(d Descriptor) {
	if err := b.Register(d); err != nil {
		panic(err)
	}
}

// Build freezes the registrations into an immutable Catalog.
func (b *Builder) Build() *Catalog {
	ids := make([]string, 0, len(b.descriptors))
	byID := make(map[string]*Descriptor, len(b.descriptors))
	for id, d := range b.descriptors {
		ids = append(ids, id)
		byID[id] = d
	}
	sort.Strings(ids)
	return &Catalog{byID: byID, ids: ids}
}

// Catalog is the frozen handler table. Safe for concurrent reads.
type Catalog struct {
	byID map[string]*Descriptor
	ids  []string
}

// Get looks up a descriptor by handler ID.
func (c *Catalog) Get(id string) (*Descriptor, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// Len returns the number of registered handlers.
func (c *Catalog) Len() int { return len(c.ids) }

// IDs returns all handler IDs in lexical order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// Descriptors returns all descriptors in lexical ID order, which keeps
// scoring and listings reproducible.
func (c *Catalog) Descriptors() []*Descriptor {
	out := make([]*Descriptor, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.byID[id])
	}
	return out
}

// Stats counts handlers per domain.
func (c *Catalog) Stats() map[Domain]int {
	stats := make(map[Domain]int)
	for _, d := range c.byID {
		stats[d.Domain]++
	}
	return stats
}
