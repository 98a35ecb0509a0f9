// Package suggest implements the Suggestion Index: five
// per-tenant, lexicographically ordered sets of terms — filenames,
// vendors, entities, keywords, and 1-3-gram content terms — backed by
// Redis sorted sets, mapping the prefix-ordered set model onto
// ZRANGEBYLEX.
package suggest

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/docsearch/internal/normalize"
)

// setName identifies one of the five per-tenant suggestion sets.
type setName string

const (
	setFilenames setName = "filenames"
	setVendors   setName = "vendors"
	setEntities  setName = "entities"
	setKeywords  setName = "keywords"
	setAllTerms  setName = "all_terms"
)

// setPriority fixes the five sets' relative score at query time — every
// member within a set shares the same rank, so priority is entirely
// between-set.
var setPriority = []struct {
	name  setName
	score float64
}{
	{setFilenames, 1.0},
	{setVendors, 0.9},
	{setEntities, 0.8},
	{setKeywords, 0.7},
	{setAllTerms, 0.5},
}

// stopWords are dropped from content before it contributes to all_terms.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "this": true, "that": true, "with": true, "from": true,
	"have": true, "has": true,
}

// minTermLen is the shortest content token eligible for all_terms.
const minTermLen = 3

// Suggestion is one entry returned by Suggest.
type Suggestion struct {
	Text  string
	Type  string
	Score float64
}

// Index is the Redis-backed Suggestion Index for all tenants.
type Index struct {
	rdb *redis.Client
}

// New wraps an existing Redis client.
func New(rdb *redis.Client) *Index {
	return &Index{rdb: rdb}
}

// key builds the per-tenant Redis key for one of the five sets.
func key(tenant string, s setName) string {
	return fmt.Sprintf("%s:suggestions:%s", tenant, s)
}

// AddTerms inserts filename, entities, keywords, vendor, and content
// terms into their respective per-tenant sets. Every
// insert is idempotent — ZADD on an existing member is a no-op beyond
// refreshing its score, which is fixed per set anyway.
func (ix *Index) AddTerms(ctx context.Context, tenant, filename string, entities, keywords []string, vendor, content string) error {
	pipe := ix.rdb.Pipeline()

	if filename != "" {
		pipe.ZAdd(ctx, key(tenant, setFilenames), redis.Z{Score: 0, Member: normalize.Normalize(filename, true)})
	}
	if vendor != "" {
		pipe.ZAdd(ctx, key(tenant, setVendors), redis.Z{Score: 0, Member: normalize.Normalize(vendor, true)})
	}
	for _, e := range entities {
		if e == "" {
			continue
		}
		pipe.ZAdd(ctx, key(tenant, setEntities), redis.Z{Score: 0, Member: normalize.Normalize(e, true)})
	}
	for _, k := range keywords {
		if k == "" {
			continue
		}
		pipe.ZAdd(ctx, key(tenant, setKeywords), redis.Z{Score: 0, Member: normalize.Normalize(k, true)})
	}

	if content != "" {
		for _, term := range contentTerms(content) {
			pipe.ZAdd(ctx, key(tenant, setAllTerms), redis.Z{Score: 0, Member: term})
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

// contentTerms normalizes content, drops stop-words and short tokens,
// and emits the unique words plus every contiguous 2- and 3-word phrase
// built from the remaining tokens.
func contentTerms(content string) []string {
	words := normalize.Tokenize(content)

	var meaningful []string
	for _, w := range words {
		if len(w) < minTermLen || stopWords[w] {
			continue
		}
		meaningful = append(meaningful, w)
	}

	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	for _, w := range meaningful {
		add(w)
	}
	for i := 0; i+1 < len(meaningful); i++ {
		add(meaningful[i] + " " + meaningful[i+1])
	}
	for i := 0; i+2 < len(meaningful); i++ {
		add(meaningful[i] + " " + meaningful[i+1] + " " + meaningful[i+2])
	}

	return out
}

// suggestionType maps a set name to the Suggest API's public type tag.
func suggestionType(s setName) string {
	switch s {
	case setFilenames:
		return "file"
	case setVendors:
		return "vendor"
	case setEntities:
		return "entity"
	case setKeywords:
		return "keyword"
	default:
		return "term"
	}
}

// Suggest normalizes prefix and performs a bounded lexicographic range
// scan over each of the five sets in fixed priority order, merging,
// deduplicating by text, and truncating to limit.
// A prefix shorter than 2 characters returns no suggestions.
func (ix *Index) Suggest(ctx context.Context, tenant, prefix string, limit int) ([]Suggestion, error) {
	norm := normalize.Normalize(prefix, true)
	if len([]rune(norm)) < 2 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	seen := map[string]bool{}
	var out []Suggestion

	for _, p := range setPriority {
		members, err := ix.rdb.ZRangeByLex(ctx, key(tenant, p.name), &redis.ZRangeBy{
			Min:    "[" + norm,
			Max:    "[" + norm + "\xff",
			Offset: 0,
			Count:  int64(limit),
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("suggest: range %s: %w", p.name, err)
		}
		for _, m := range members {
			if seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, Suggestion{Text: m, Type: suggestionType(p.name), Score: p.score})
		}
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping reports whether the backing Redis instance is reachable, used by
// the stats surface to report suggestion-store health.
func (ix *Index) Ping(ctx context.Context) error {
	return ix.rdb.Ping(ctx).Err()
}

// RemoveFilename removes filename from the tenant's filenames set.
func (ix *Index) RemoveFilename(ctx context.Context, tenant, filename string) error {
	return ix.rdb.ZRem(ctx, key(tenant, setFilenames), normalize.Normalize(filename, true)).Err()
}

// ClearTenant deletes all five of a tenant's suggestion sets.
func (ix *Index) ClearTenant(ctx context.Context, tenant string) error {
	keys := make([]string, 0, len(setPriority))
	for _, p := range setPriority {
		keys = append(keys, key(tenant, p.name))
	}
	return ix.rdb.Del(ctx, keys...).Err()
}
