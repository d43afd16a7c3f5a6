package css

import (
	"context"
	"fmt"
	"sort"
)

// StaticClient is an in-memory Client used in tests and in small
// deployments seeded entirely from configuration. It never returns
// ErrMissingMetadata for a database it was not told about; callers should
// check PartitionedTables first.
type StaticClient struct {
	Directors    map[string]DirectorInfo // keyed by "db.table"
	Partitioned  map[string][]string     // keyed by db
	Stripes      map[string][2]int       // keyed by db -> [stripes, subStripes]
	Empty        map[string]map[int32]bool
	Assignment   map[string]map[int32]string // keyed by "db.table" -> chunk -> worker
	ReplicaIndex map[string][]ReplicaInfo    // keyed by "db" -> replicas
}

// NewStaticClient returns an empty StaticClient ready for tests to seed.
func NewStaticClient() *StaticClient {
	return &StaticClient{
		Directors:    map[string]DirectorInfo{},
		Partitioned:  map[string][]string{},
		Stripes:      map[string][2]int{},
		Empty:        map[string]map[int32]bool{},
		Assignment:   map[string]map[int32]string{},
		ReplicaIndex: map[string][]ReplicaInfo{},
	}
}

func dbTableKey(db, table string) string { return db + "." + table }

// AddPartitionedTable registers table as partitioned in db with the given
// director info and worker assignment.
func (c *StaticClient) AddPartitionedTable(db, table string, director DirectorInfo, assignment map[int32]string) {
	c.Partitioned[db] = append(c.Partitioned[db], table)
	sort.Strings(c.Partitioned[db])
	c.Directors[dbTableKey(db, table)] = director
	c.Assignment[dbTableKey(db, table)] = assignment
}

func (c *StaticClient) PartitionedTables(_ context.Context, db string) ([]string, error) {
	return c.Partitioned[db], nil
}

func (c *StaticClient) Director(_ context.Context, db, table string) (DirectorInfo, error) {
	d, ok := c.Directors[dbTableKey(db, table)]
	if !ok {
		return DirectorInfo{}, fmt.Errorf("css: no director info for %s.%s", db, table)
	}
	return d, nil
}

func (c *StaticClient) StripingParams(_ context.Context, db string) (int, int, error) {
	s, ok := c.Stripes[db]
	if !ok {
		return 0, 0, fmt.Errorf("css: no striping params for %s", db)
	}
	return s[0], s[1], nil
}

func (c *StaticClient) EmptyChunks(_ context.Context, db string) (map[int32]bool, error) {
	return c.Empty[db], nil
}

func (c *StaticClient) Chunks(_ context.Context, db, table string) ([]int32, error) {
	a, ok := c.Assignment[dbTableKey(db, table)]
	if !ok {
		return nil, fmt.Errorf("css: no assignment for %s.%s", db, table)
	}
	out := make([]int32, 0, len(a))
	for chunk := range a {
		out = append(out, chunk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (c *StaticClient) ChunkToWorker(_ context.Context, db, table string, chunk int32) (string, error) {
	a, ok := c.Assignment[dbTableKey(db, table)]
	if !ok {
		return "", fmt.Errorf("css: no assignment for %s.%s", db, table)
	}
	w, ok := a[chunk]
	if !ok {
		return "", fmt.Errorf("css: chunk %d of %s.%s has no worker assignment", chunk, db, table)
	}
	return w, nil
}

func (c *StaticClient) Replicas(_ context.Context, db string, chunk int32) ([]ReplicaInfo, error) {
	var out []ReplicaInfo
	for _, r := range c.ReplicaIndex[db] {
		if r.Chunk == chunk {
			out = append(out, r)
		}
	}
	return out, nil
}

func (c *StaticClient) Close() error { return nil }
