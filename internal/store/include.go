package store

import (
	"fmt"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Include selector keywords.
const (
	IncludeAll         = "all"
	IncludeAllCells    = "allCells"
	IncludeAllNetStims = "allNetStims"
)

type selectorKind int

const (
	selectAll selectorKind = iota
	selectAllCells
	selectAllNetStims
	selectPop
	selectGID
	selectRelative
)

// selector is one parsed include item.
type selector struct {
	kind selectorKind
	pop  string
	gid  int
	rel  int
}

// parseInclude parses include selectors:
//
//	all           every cell and netstim
//	allCells      every cell, no netstims
//	allNetStims   every netstim
//	<pop>         every cell in a population
//	<gid>         one cell by global id
//	<pop>:<i>     the i-th cell (by gid) of a population
//
// An empty list means allCells.
func parseInclude(items []string) ([]selector, error) {
	if len(items) == 0 {
		return []selector{{kind: selectAllCells}}, nil
	}

	sels := make([]selector, 0, len(items))
	for _, raw := range items {
		item := strings.TrimSpace(raw)
		switch {
		case item == "":
			return nil, fmt.Errorf("empty include selector")
		case item == IncludeAll:
			sels = append(sels, selector{kind: selectAll})
		case item == IncludeAllCells:
			sels = append(sels, selector{kind: selectAllCells})
		case item == IncludeAllNetStims:
			sels = append(sels, selector{kind: selectAllNetStims})
		case isDigits(item):
			gid, err := strconv.Atoi(item)
			if err != nil {
				return nil, fmt.Errorf("include %q: %w", item, err)
			}
			sels = append(sels, selector{kind: selectGID, gid: gid})
		case strings.Contains(item, ":"):
			pop, relStr, _ := strings.Cut(item, ":")
			rel, err := strconv.Atoi(relStr)
			if err != nil || rel < 0 || pop == "" {
				return nil, fmt.Errorf("include %q: expected <pop>:<index>", item)
			}
			sels = append(sels, selector{kind: selectRelative, pop: pop, rel: rel})
		default:
			sels = append(sels, selector{kind: selectPop, pop: item})
		}
	}
	return sels, nil
}

// includePredicate builds the WHERE predicate over the cells table
// (aliased "c") selecting the union of the given selectors.
func includePredicate(datasetID string, sels []selector) sq.Sqlizer {
	or := sq.Or{}
	for _, sel := range sels {
		switch sel.kind {
		case selectAll:
			return sq.Eq{"c.dataset_id": datasetID}
		case selectAllCells:
			or = append(or, sq.Eq{"c.kind": KindCell})
		case selectAllNetStims:
			or = append(or, sq.Eq{"c.kind": KindNetStim})
		case selectPop:
			or = append(or, sq.Eq{"c.pop": sel.pop})
		case selectGID:
			or = append(or, sq.Eq{"c.gid": sel.gid})
		case selectRelative:
			or = append(or, sq.Expr(
				"c.gid = (SELECT gid FROM cells WHERE dataset_id = ? AND pop = ? ORDER BY gid LIMIT 1 OFFSET ?)",
				datasetID, sel.pop, sel.rel,
			))
		}
	}
	return or
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
