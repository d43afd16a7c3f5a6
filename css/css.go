// Package css is the client for Qserv's Central State System, the
// key-value metadata store consulted during planning for partitioned-table
// layout, director-table identity, striping parameters, empty chunks and
// the current chunk-to-worker assignment.
package css

import "context"

// ReplicaStatus enumerates the completeness of a chunk replica on a
// worker.
type ReplicaStatus int

const (
	ReplicaNotFound ReplicaStatus = iota
	ReplicaIncomplete
	ReplicaComplete
)

// ReplicaFile describes one file backing a chunk replica.
type ReplicaFile struct {
	Name     string
	Size     int64
	Checksum string
}

// ReplicaInfo describes one worker's replica of one chunk.
type ReplicaInfo struct {
	Status   ReplicaStatus
	Worker   string
	Database string
	Chunk    int32
	Files    []ReplicaFile
}

// DirectorInfo names a database's director table and its partitioning
// columns.
type DirectorInfo struct {
	Table          string
	KeyColumn      string
	ChunkColumn    string
	SubChunkColumn string
}

// Client is the metadata interface the planner consults. Implementations:
// mysqlClient (backed by a MySQL schema) and the in-memory StaticClient
// used in tests, mirroring the role the teacher's in-memory `memory`
// package plays as a storage-engine stand-in.
type Client interface {
	// PartitionedTables lists the partitioned tables of db.
	PartitionedTables(ctx context.Context, db string) ([]string, error)
	// Director returns the director table and its key/chunk/sub-chunk
	// columns for table.
	Director(ctx context.Context, db, table string) (DirectorInfo, error)
	// StripingParams returns the number of stripes and sub-stripes used to
	// partition db.
	StripingParams(ctx context.Context, db string) (stripes, subStripes int, err error)
	// EmptyChunks returns the set of chunk ids known to contain no rows in
	// db, used to prune the dispatch list before fan-out.
	EmptyChunks(ctx context.Context, db string) (map[int32]bool, error)
	// Chunks returns every known chunk id of db.table, used to build the
	// dispatch list before EmptyChunks/ChunkToWorker prune and assign it.
	Chunks(ctx context.Context, db, table string) ([]int32, error)
	// ChunkToWorker resolves which worker currently owns chunk of
	// db.table.
	ChunkToWorker(ctx context.Context, db, table string, chunk int32) (worker string, err error)
	// Replicas returns the known replicas of chunk in db.
	Replicas(ctx context.Context, db string, chunk int32) ([]ReplicaInfo, error)
	// Close releases any underlying connection.
	Close() error
}
