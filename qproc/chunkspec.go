package qproc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ChunkQuerySpec is the flattened per-chunk artifact: the list of concrete
// SQL strings a worker must execute to answer this user query for one
// chunk, the chunk id, and the sub-chunk ids (if any) it covers.
type ChunkQuerySpec struct {
	Chunk      int32
	SubChunks  []int32
	Queries    []string
}

// Builder materializes ChunkQuerySpecs from a parallel template and a set
// of target chunks.
type Builder struct {
	Template string
	Mapping  QueryMapping
	Db       string
}

// NewBuilder returns a Builder for template, substituting db-qualified
// partitioned table names per mapping.
func NewBuilder(template string, mapping QueryMapping, db string) *Builder {
	return &Builder{Template: template, Mapping: mapping, Db: db}
}

// Build returns one ChunkQuerySpec per chunk in chunks (deduplicated,
// sorted ascending), each containing the template's {chunk} placeholder
// substituted and every partitioned table name suffixed with the chunk id
// -- emitting a second query against the FullOverlap shadow table for
// every TableSubst that requires overlap.
func (b *Builder) Build(chunks []int32) []ChunkQuerySpec {
	uniq := dedupSortInt32(chunks)
	out := make([]ChunkQuerySpec, 0, len(uniq))
	for _, c := range uniq {
		out = append(out, ChunkQuerySpec{
			Chunk:   c,
			Queries: b.queriesForChunk(c, nil),
		})
	}
	return out
}

// BuildWithSubChunks is the near-neighbor-join variant: one ChunkQuerySpec
// per chunk, each expanding {subChunk} into one query string per sub-chunk
// id in subChunksByChunk[chunk].
func (b *Builder) BuildWithSubChunks(chunks []int32, subChunksByChunk map[int32][]int32) []ChunkQuerySpec {
	uniq := dedupSortInt32(chunks)
	out := make([]ChunkQuerySpec, 0, len(uniq))
	for _, c := range uniq {
		subs := dedupSortInt32(subChunksByChunk[c])
		out = append(out, ChunkQuerySpec{
			Chunk:     c,
			SubChunks: subs,
			Queries:   b.queriesForChunk(c, subs),
		})
	}
	return out
}

func (b *Builder) queriesForChunk(chunk int32, subChunks []int32) []string {
	base := strings.ReplaceAll(b.Template, "{chunk}", strconv.FormatInt(int64(chunk), 10))

	subChunkTargets := []int32{0}
	expandSubChunk := strings.Contains(base, "{subChunk}")
	if expandSubChunk {
		subChunkTargets = subChunks
	}

	var out []string
	for _, sc := range subChunkTargets {
		q := base
		if expandSubChunk {
			q = strings.ReplaceAll(q, "{subChunk}", strconv.FormatInt(int64(sc), 10))
		}
		out = append(out, b.substituteTables(q, chunk, false))
		if b.hasOverlap() {
			out = append(out, b.substituteTables(q, chunk, true))
		}
	}
	return dedupStrings(out)
}

func (b *Builder) hasOverlap() bool {
	for _, t := range b.Mapping.Tables {
		if t.NeedsOverlap {
			return true
		}
	}
	return false
}

func (b *Builder) substituteTables(q string, chunk int32, overlap bool) string {
	for _, t := range b.Mapping.Tables {
		dbTable := t.Db + "." + t.Table
		suffix := fmt.Sprintf("_%d", chunk)
		if overlap && t.NeedsOverlap {
			suffix += "FullOverlap"
		}
		q = replaceUnquotedIdentifier(q, dbTable, dbTable+suffix)
	}
	return q
}

// replaceUnquotedIdentifier replaces every occurrence of target in s with
// replacement, except occurrences immediately wrapped in backticks (a
// rendered table alias, which must not be chunk-suffixed) or that are a
// substring of a longer identifier.
func replaceUnquotedIdentifier(s, target, replacement string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		if i+len(target) <= len(s) && s[i:i+len(target)] == target {
			before := byte(0)
			if i > 0 {
				before = s[i-1]
			}
			after := byte(0)
			if i+len(target) < len(s) {
				after = s[i+len(target)]
			}
			if before != '`' && after != '`' && !isIdentChar(before) && !isIdentChar(after) {
				b.WriteString(replacement)
				i += len(target)
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func dedupSortInt32(in []int32) []int32 {
	seen := map[int32]bool{}
	out := make([]int32, 0, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func dedupStrings(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
