package datagen

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/JonMunkholm/synthdata/internal/schema"
)

// ErrUnresolvedReference is returned when a table references a table whose
// keys have not been materialized yet.
var ErrUnresolvedReference = errors.New("unresolved foreign key reference")

// KeyPool holds the primary keys of one materialized table in generation
// order. Keys are either all int64 or all string.
type KeyPool struct {
	Table  string
	Column string
	Type   schema.ValueType
	ints   []int64
	strs   []string
}

// Len returns the number of keys in the pool.
func (p *KeyPool) Len() int {
	if p.Type == schema.TypeString {
		return len(p.strs)
	}
	return len(p.ints)
}

// At returns the i-th key.
func (p *KeyPool) At(i int) any {
	if p.Type == schema.TypeString {
		return p.strs[i]
	}
	return p.ints[i]
}

// Sample draws one key uniformly with replacement.
func (p *KeyPool) Sample(rng *rand.Rand) any {
	return p.At(rng.Intn(p.Len()))
}

func (p *KeyPool) add(key any) {
	switch k := key.(type) {
	case string:
		p.strs = append(p.strs, k)
	case int64:
		p.ints = append(p.ints, k)
	}
}

// Registry maps table names to their key pools for the duration of a run.
type Registry struct {
	pools map[string]*KeyPool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{pools: make(map[string]*KeyPool)}
}

// Register makes a finished table's keys available to later tables.
func (r *Registry) Register(p *KeyPool) {
	r.pools[p.Table] = p
}

// Lookup returns the pool for table, failing with ErrUnresolvedReference
// when the table has not been generated yet or has no rows.
func (r *Registry) Lookup(table, column string) (*KeyPool, error) {
	p, ok := r.pools[table]
	if !ok || p.Len() == 0 {
		return nil, fmt.Errorf("%w: %s.%s has not been generated yet", ErrUnresolvedReference, table, column)
	}
	if column != "" && column != p.Column {
		return nil, fmt.Errorf("%w: %s.%s is not the primary key (%s)", ErrUnresolvedReference, table, column, p.Column)
	}
	return p, nil
}

// Drop releases a pool that no later table references.
func (r *Registry) Drop(table string) {
	delete(r.pools, table)
}
