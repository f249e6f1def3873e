package core

import "reflect"

// The stash is the parser's bag of named variables, readable and
// writable from rules as ~name.  It has two tiers: the transient
// stash is cleared at the end of every read; the pre-stash persists
// until explicitly forgotten.  Reads see the transient tier overlaid
// on the persistent one.

// Stashed reads name from the unified stash view.
func (p *Parser) Stashed(name string) (interface{}, bool) {
	if v, have := p.stash[name]; have {
		return v, true
	}
	v, have := p.preStash[name]
	return v, have
}

// SetStashed writes a transient entry.  It shadows any pre-stashed
// value of the same name until the read ends.
func (p *Parser) SetStashed(name string, v interface{}) {
	p.stash[name] = v
}

// Prestash writes a persistent entry that survives reads.
func (p *Parser) Prestash(name string, v interface{}) {
	p.preStash[name] = v
}

// PrestashMap returns a copy of the persistent tier.
func (p *Parser) PrestashMap() map[string]interface{} {
	acc := make(map[string]interface{}, len(p.preStash))
	for k, v := range p.preStash {
		acc[k] = v
	}
	return acc
}

// Forget erases names from both tiers.  With no names, everything
// persistent (and transient) goes.
func (p *Parser) Forget(names ...string) {
	if len(names) == 0 {
		p.stash = make(map[string]interface{})
		p.preStash = make(map[string]interface{})
		return
	}
	for _, name := range names {
		delete(p.stash, name)
		delete(p.preStash, name)
	}
}

// HasStashed reports whether name is visible in the unified view.
func (p *Parser) HasStashed(name string) bool {
	_, have := p.Stashed(name)
	return have
}

// HasEmptyStash reports whether nothing at all is stashed.
func (p *Parser) HasEmptyStash() bool {
	return len(p.stash) == 0 && len(p.preStash) == 0
}

// StashView builds the unified map rules evaluate against: pre-stash
// overlaid by the transient stash.
func (p *Parser) StashView() map[string]interface{} {
	acc := make(map[string]interface{}, len(p.stash)+len(p.preStash))
	for k, v := range p.preStash {
		acc[k] = v
	}
	for k, v := range p.stash {
		acc[k] = v
	}
	return acc
}

// SyncStash applies the after-execution state of a rule's stash map:
// keys that differ from the unified view become transient writes,
// keys that vanished become transient deletes (a pre-stashed copy
// survives a transient delete).
func (p *Parser) SyncStash(before, after map[string]interface{}) {
	for k := range before {
		if _, still := after[k]; !still {
			delete(p.stash, k)
		}
	}
	for k, v := range after {
		old, had := before[k]
		if !had || !reflect.DeepEqual(old, v) {
			p.stash[k] = v
		}
	}
}

func (p *Parser) deleteTransient(name string) {
	delete(p.stash, name)
}

func (p *Parser) prestashed(name string) (interface{}, bool) {
	v, have := p.preStash[name]
	return v, have
}
