package ingest

import (
	"strings"

	"chainscope/internal/domain/option_chain"
)

// Side-prefix conventions seen in option chain exports
const (
	ConventionCEPE    = "CE/PE"
	ConventionCallPut = "CALL/PUT"
	ConventionMixed   = "mixed"
	ConventionNone    = "none"
)

// Schema is the resolved column set of one file
type Schema struct {
	Columns    []string // normalized, positionally aligned with the raw header
	Sides      []option_chain.Side
	Convention string
}

// HasSideData reports whether at least one side prefix was recognized
func (s Schema) HasSideData() bool {
	return len(s.Sides) > 0
}

// HasColumn reports whether the normalized header contains column
func (s Schema) HasColumn(column string) bool {
	for _, c := range s.Columns {
		if c == column {
			return true
		}
	}
	return false
}

var sideAliases = []struct {
	prefix     string
	side       option_chain.Side
	convention string
}{
	{"CALL_", option_chain.SideCE, ConventionCallPut},
	{"PUT_", option_chain.SidePE, ConventionCallPut},
	{"CE_", option_chain.SideCE, ConventionCEPE},
	{"PE_", option_chain.SidePE, ConventionCEPE},
}

// NormalizeColumns trims header names, joins internal whitespace with
// underscores and rewrites CALL_/PUT_ (any case) to CE_/PE_.
func NormalizeColumns(raw []string) Schema {
	schema := Schema{Columns: make([]string, len(raw))}
	seenSide := make(map[option_chain.Side]bool)
	conventions := make(map[string]bool)

	for i, name := range raw {
		name = strings.TrimPrefix(name, "\ufeff")
		name = strings.Join(strings.Fields(name), "_")

		upper := strings.ToUpper(name)
		for _, alias := range sideAliases {
			if strings.HasPrefix(upper, alias.prefix) && len(name) > len(alias.prefix) {
				name = alias.side.Prefix() + name[len(alias.prefix):]
				seenSide[alias.side] = true
				conventions[alias.convention] = true
				break
			}
		}
		schema.Columns[i] = name
	}

	for _, side := range option_chain.Sides {
		if seenSide[side] {
			schema.Sides = append(schema.Sides, side)
		}
	}

	switch {
	case len(conventions) == 0:
		schema.Convention = ConventionNone
	case len(conventions) > 1:
		schema.Convention = ConventionMixed
	case conventions[ConventionCallPut]:
		schema.Convention = ConventionCallPut
	default:
		schema.Convention = ConventionCEPE
	}
	return schema
}
