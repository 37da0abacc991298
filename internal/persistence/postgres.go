package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Postgres driver
)

// PostgresDB implements the Database interface for PostgreSQL
type PostgresDB struct {
	db           *sql.DB
	sourceItems  SourceItemRepository
	profiles     AudienceProfileRepository
	settings     SettingsRepository
	proposals    ProposalRepository
	clusterCache ClusterCacheRepository
	trends       TrendRepository
	members      MemberRepository
}

// NewPostgresDB opens a PostgreSQL connection pool and verifies it
func NewPostgresDB(connectionString string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewPostgresDBFromConn(db), nil
}

// NewPostgresDBFromConn wraps an existing *sql.DB
func NewPostgresDBFromConn(db *sql.DB) *PostgresDB {
	c := conn{db: db}
	return &PostgresDB{
		db:           db,
		sourceItems:  &postgresSourceItemRepo{c},
		profiles:     &postgresProfileRepo{c},
		settings:     &postgresSettingsRepo{c},
		proposals:    &postgresProposalRepo{c},
		clusterCache: &postgresClusterCacheRepo{c},
		trends:       &postgresTrendRepo{c},
		members:      &postgresMemberRepo{c},
	}
}

func (p *PostgresDB) SourceItems() SourceItemRepository           { return p.sourceItems }
func (p *PostgresDB) AudienceProfiles() AudienceProfileRepository { return p.profiles }
func (p *PostgresDB) Settings() SettingsRepository                { return p.settings }
func (p *PostgresDB) Proposals() ProposalRepository               { return p.proposals }
func (p *PostgresDB) ClusterCache() ClusterCacheRepository        { return p.clusterCache }
func (p *PostgresDB) Trends() TrendRepository                     { return p.trends }
func (p *PostgresDB) Members() MemberRepository                   { return p.members }

func (p *PostgresDB) Close() error {
	return p.db.Close()
}

func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresDB) BeginTx(ctx context.Context) (Transaction, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	c := conn{db: p.db, tx: tx}
	return &postgresTx{
		tx:           tx,
		proposals:    &postgresProposalRepo{c},
		clusterCache: &postgresClusterCacheRepo{c},
		settings:     &postgresSettingsRepo{c},
	}, nil
}

// postgresTx implements Transaction interface
type postgresTx struct {
	tx           *sql.Tx
	proposals    ProposalRepository
	clusterCache ClusterCacheRepository
	settings     SettingsRepository
}

func (t *postgresTx) Commit() error                        { return t.tx.Commit() }
func (t *postgresTx) Rollback() error                      { return t.tx.Rollback() }
func (t *postgresTx) Proposals() ProposalRepository        { return t.proposals }
func (t *postgresTx) ClusterCache() ClusterCacheRepository { return t.clusterCache }
func (t *postgresTx) Settings() SettingsRepository         { return t.settings }

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// conn is shared by repositories; it routes statements through the transaction when one is open.
type conn struct {
	db *sql.DB
	tx *sql.Tx
}

func (c conn) query() queryer {
	if c.tx != nil {
		return c.tx
	}
	return c.db
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
