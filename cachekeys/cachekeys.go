// Package cachekeys names cached query results and lists, for every
// mutation, which of them it can change.
package cachekeys

import (
	"encoding/json"
	"strings"
)

// Procedure names.
const (
	RecordAll         = "record.all"
	RecordSpecific    = "record.specific"
	RecordSuggest     = "record.suggest"
	RecordAdd         = "record.add"
	RecordEdit        = "record.edit"
	RecordDelete      = "record.delete"
	TransactionAdd    = "transaction.add"
	TransactionEdit   = "transaction.edit"
	TransactionDelete = "transaction.delete"
)

// Separator joins a procedure name and its argument in a key.
const Separator = ":"

// Key builds the cache key of a query from its procedure and input. The
// input is encoded as JSON so equal inputs produce equal keys.
func Key(procedure string, input any) string {
	if id, ok := input.(string); ok {
		return procedure + Separator + id
	}
	b, err := json.Marshal(input)
	if err != nil {
		return procedure
	}
	return procedure + Separator + string(b)
}

// RecordSpecificKey is the key of record.specific for one record.
func RecordSpecificKey(id string) string {
	return RecordSpecific + Separator + id
}

// Mutation identifies a completed mutation. RecordID is the record the
// mutation touched: the edited/deleted record itself, or the owner of
// the transaction.
type Mutation struct {
	Procedure string
	RecordID  string
}

var rules = map[string]func(m Mutation) []string{
	RecordAdd: func(Mutation) []string {
		return []string{RecordAll}
	},
	RecordEdit: func(m Mutation) []string {
		return []string{RecordAll, RecordSpecificKey(m.RecordID)}
	},
	RecordDelete: func(m Mutation) []string {
		return []string{RecordAll, RecordSpecificKey(m.RecordID)}
	},
	TransactionAdd: func(m Mutation) []string {
		return []string{RecordSpecificKey(m.RecordID)}
	},
	TransactionEdit: func(m Mutation) []string {
		return []string{RecordSpecificKey(m.RecordID)}
	},
	TransactionDelete: func(m Mutation) []string {
		return []string{RecordSpecificKey(m.RecordID)}
	},
}

// Invalidates returns the key prefixes a mutation makes stale. Unknown
// procedures invalidate nothing.
func Invalidates(m Mutation) []string {
	rule, ok := rules[m.Procedure]
	if !ok {
		return nil
	}
	return rule(m)
}

// IsMutation reports whether a procedure has an invalidation rule.
func IsMutation(procedure string) bool {
	_, ok := rules[procedure]
	return ok
}

// WholeProcedure reports whether prefix names every key of a procedure
// rather than a single key.
func WholeProcedure(prefix string) bool {
	return !strings.Contains(prefix, Separator)
}

// Matches reports whether key falls under prefix. A whole-procedure
// prefix matches every key of that procedure; any other prefix matches
// only the identical key, so "record.specific:1" does not match
// "record.specific:10".
func Matches(key, prefix string) bool {
	if WholeProcedure(prefix) {
		return strings.HasPrefix(key, prefix+Separator)
	}
	return key == prefix
}
