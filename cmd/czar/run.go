package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"

	"github.com/provingground-moe/qserv-sub000/css"
	"github.com/provingground-moe/qserv-sub000/czar"
	"github.com/provingground-moe/qserv-sub000/internal/config"
	"github.com/provingground-moe/qserv-sub000/internal/qlog"
	"github.com/provingground-moe/qserv-sub000/internal/qmeta"
	"github.com/provingground-moe/qserv-sub000/qdisp"
)

var runDefaultDb string

var runCmd = &cobra.Command{
	Use:   "run [flags] <sql>",
	Short: "Plan, dispatch, and merge one user query",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runDefaultDb, "db", "", "default database for unqualified tables")
	runCmd.MarkFlagRequired("db")
}

func runRun(cmd *cobra.Command, args []string) error {
	qlog.Init(logLevel(), jsonLog)
	log := qlog.With("component", "cmd/czar")

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cssClient, err := openCSS(cfg)
	if err != nil {
		return fmt.Errorf("opening css client: %w", err)
	}
	defer cssClient.Close()

	resultDSN := fmt.Sprintf("%s@unix(%s)/%s", cfg.Get("resultdb.user"), cfg.Get("resultdb.unix_socket"), cfg.Get("resultdb.db"))
	resultDB, err := sql.Open("mysql", resultDSN)
	if err != nil {
		return fmt.Errorf("opening result db: %w", err)
	}
	defer resultDB.Close()

	var metaStore *qmeta.Store
	if qmetaCfg, err := qmetaConfig(cfg); err == nil {
		if s, err := qmeta.Open(qmetaCfg); err != nil {
			log.WithError(err).Warn("qmeta unavailable, bookkeeping disabled for this run")
		} else {
			metaStore = s
			defer metaStore.Close()
		}
	}

	maxSizeMB, _ := cfg.GetInt("merger.maxResultTableSizeMB")
	checkEvery, _ := cfg.GetInt("merger.checkSizeEveryXRows")

	c := czar.New(cssClient, metaStore, resultDB, cfg.Get("resultdb.db"), tcpDialer, czar.Config{
		MaxResultTableSizeMB: maxSizeMB,
		CheckSizeEveryXRows:  checkEvery,
	})

	ctx := context.Background()
	sessionID, proxyOrderBy, err := c.NewUserQuery(ctx, args[0], runDefaultDb, "")
	if err != nil {
		return fmt.Errorf("planning query: %w", err)
	}
	if proxyOrderBy != "" {
		log.WithField("proxyOrderBy", proxyOrderBy).Info("front end must re-sort merged rows")
	}

	if err := c.Submit(ctx, sessionID); err != nil {
		return fmt.Errorf("submitting query: %w", err)
	}

	status, err := c.Join(sessionID)
	fmt.Printf("session %d finished: %s\n", sessionID, status)
	return err
}

func openCSS(cfg *config.Config) (css.Client, error) {
	if cfg.Get("css.technology") != "mysql" {
		return css.NewStaticClient(), nil
	}
	timeout, err := cfg.GetDuration("css.timeout")
	if err != nil {
		timeout = 10 * time.Second
	}
	return css.NewMySQLClient(css.MySQLConfig{DSN: cfg.Get("css.connection"), Timeout: timeout})
}

func qmetaConfig(cfg *config.Config) (qmeta.Config, error) {
	return qmeta.Config{
		Host:       cfg.Get("qmeta.host"),
		Port:       cfg.Get("qmeta.port"),
		User:       cfg.Get("qmeta.user"),
		Passwd:     cfg.Get("qmeta.passwd"),
		UnixSocket: cfg.Get("qmeta.unix_socket"),
		Db:         cfg.Get("qmeta.db"),
	}, nil
}

// tcpDialer opens a plain TCP connection to worker (a "host:port" string)
// and frames requests/responses per §4.H/§6; the worker-side protocol
// itself is out of scope (§1), so this is the minimal transport that
// satisfies qdisp.Conn.
func tcpDialer(worker string) (qdisp.Conn, error) {
	conn, err := net.DialTimeout("tcp", worker, 5*time.Second)
	if err != nil {
		return nil, err
	}
	return &tcpConn{conn: conn}, nil
}

type tcpConn struct {
	conn net.Conn
}

func (c *tcpConn) SendRequest(id uint64, payload []byte) (*qdisp.ResponsePayload, error) {
	if err := qdisp.WriteFrame(c.conn, nil, payload); err != nil {
		return nil, err
	}
	_, respPayload, err := qdisp.ReadFrame(c.conn)
	if err != nil {
		return nil, err
	}
	return &qdisp.ResponsePayload{Rows: respPayload}, nil
}

func (c *tcpConn) Close() error { return c.conn.Close() }
