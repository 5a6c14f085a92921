package search

import (
	"strings"

	"github.com/agentvault/agentvault/internal/index"
)

// Clause is one AND-ed unit of a parsed query. A document must match
// every clause to be returned.
type Clause struct {
	// Terms are index-tokenized query terms. More than one term with
	// Phrase set requires exact token adjacency in order.
	Terms []string

	// Phrase marks a quoted run requiring adjacency.
	Phrase bool

	// Prefix marks a trailing-star term matched against indexed terms
	// by prefix. Prefix clauses carry exactly one term.
	Prefix bool
}

// ParseQuery splits a query into clauses: whitespace-separated terms
// (implicit AND), double-quoted phrases, and trailing-* prefix terms.
//
// Query terms pass through the index tokenizer, so query and index
// agree on folding and boundaries. An unbalanced quote is demoted to a
// literal character rather than failing the query.
func ParseQuery(query string) []Clause {
	var clauses []Clause

	rest := query
	for rest != "" {
		rest = strings.TrimLeft(rest, " \t\r\n")
		if rest == "" {
			break
		}

		if rest[0] == '"' {
			end := strings.IndexByte(rest[1:], '"')
			if end < 0 {
				// Unbalanced: the quote is a literal character, which
				// the tokenizer discards; keep parsing the remainder.
				rest = rest[1:]
				continue
			}

			terms := index.Tokenize(rest[1 : 1+end])
			rest = rest[2+end:]
			if len(terms) == 0 {
				continue
			}
			clauses = append(clauses, Clause{Terms: terms, Phrase: len(terms) > 1})
			continue
		}

		word := rest
		if sp := strings.IndexAny(rest, " \t\r\n"); sp >= 0 {
			word, rest = rest[:sp], rest[sp:]
		} else {
			rest = ""
		}

		prefix := strings.HasSuffix(word, "*")
		terms := index.Tokenize(strings.TrimSuffix(word, "*"))
		for i, term := range terms {
			if prefix && i == len(terms)-1 {
				clauses = append(clauses, Clause{Terms: []string{term}, Prefix: true})
				continue
			}
			clauses = append(clauses, Clause{Terms: []string{term}})
		}
	}

	return clauses
}
