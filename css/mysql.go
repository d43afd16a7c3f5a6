package css

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

// MySQLConfig configures the MySQL-backed CSS client, matching the
// css.connection/css.timeout configuration keys.
type MySQLConfig struct {
	DSN     string
	Timeout time.Duration
}

// mysqlClient backs Client with the flattened key-value schema Qserv
// stores CSS state in: one row per (db, table) carrying its director
// column, chunk/sub-chunk columns and striping parameters, plus a
// chunk-assignment table and an empty-chunks table.
type mysqlClient struct {
	db *sql.DB
}

// NewMySQLClient opens a connection pool against cfg and verifies
// connectivity with a ping bounded by cfg.Timeout.
func NewMySQLClient(cfg MySQLConfig) (Client, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "css: opening mysql connection")
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "css: pinging mysql")
	}
	return &mysqlClient{db: db}, nil
}

func (c *mysqlClient) PartitionedTables(ctx context.Context, db string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT table_name FROM css_partition_table WHERE db_name = ?`, db)
	if err != nil {
		return nil, errors.Wrap(err, "css: query partitioned tables")
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return nil, err
		}
		out = append(out, table)
	}
	return out, rows.Err()
}

func (c *mysqlClient) Director(ctx context.Context, db, table string) (DirectorInfo, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT director_table, key_column, chunk_column, subchunk_column
		   FROM css_partition_table WHERE db_name = ? AND table_name = ?`, db, table)
	var d DirectorInfo
	if err := row.Scan(&d.Table, &d.KeyColumn, &d.ChunkColumn, &d.SubChunkColumn); err != nil {
		return DirectorInfo{}, errors.Wrapf(err, "css: director lookup for %s.%s", db, table)
	}
	return d, nil
}

func (c *mysqlClient) StripingParams(ctx context.Context, db string) (int, int, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT num_stripes, num_sub_stripes FROM css_database WHERE db_name = ?`, db)
	var stripes, subStripes int
	if err := row.Scan(&stripes, &subStripes); err != nil {
		return 0, 0, errors.Wrapf(err, "css: striping params for %s", db)
	}
	return stripes, subStripes, nil
}

func (c *mysqlClient) EmptyChunks(ctx context.Context, db string) (map[int32]bool, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT chunk_id FROM css_empty_chunks WHERE db_name = ?`, db)
	if err != nil {
		return nil, errors.Wrap(err, "css: query empty chunks")
	}
	defer rows.Close()
	out := map[int32]bool{}
	for rows.Next() {
		var chunk int32
		if err := rows.Scan(&chunk); err != nil {
			return nil, err
		}
		out[chunk] = true
	}
	return out, rows.Err()
}

func (c *mysqlClient) Chunks(ctx context.Context, db, table string) ([]int32, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT DISTINCT chunk_id FROM css_chunk_map WHERE db_name = ? AND table_name = ? ORDER BY chunk_id`,
		db, table)
	if err != nil {
		return nil, errors.Wrapf(err, "css: query chunks for %s.%s", db, table)
	}
	defer rows.Close()
	var out []int32
	for rows.Next() {
		var chunk int32
		if err := rows.Scan(&chunk); err != nil {
			return nil, err
		}
		out = append(out, chunk)
	}
	return out, rows.Err()
}

func (c *mysqlClient) ChunkToWorker(ctx context.Context, db, table string, chunk int32) (string, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT worker_id FROM css_chunk_map WHERE db_name = ? AND table_name = ? AND chunk_id = ?`,
		db, table, chunk)
	var worker string
	if err := row.Scan(&worker); err != nil {
		return "", errors.Wrapf(err, "css: chunk map lookup for %s.%s chunk %d", db, table, chunk)
	}
	return worker, nil
}

func (c *mysqlClient) Replicas(ctx context.Context, db string, chunk int32) ([]ReplicaInfo, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT worker_id, status FROM css_replica WHERE db_name = ? AND chunk_id = ?`, db, chunk)
	if err != nil {
		return nil, errors.Wrap(err, "css: query replicas")
	}
	defer rows.Close()
	var out []ReplicaInfo
	for rows.Next() {
		var worker string
		var status int
		if err := rows.Scan(&worker, &status); err != nil {
			return nil, err
		}
		out = append(out, ReplicaInfo{
			Status:   ReplicaStatus(status),
			Worker:   worker,
			Database: db,
			Chunk:    chunk,
		})
	}
	return out, rows.Err()
}

func (c *mysqlClient) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}
