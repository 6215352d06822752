package connector

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sghaida/xdparent/cloud"
)

// Supported datastore drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// DataSourceConfig tunes the connection pool. Zero values keep database/sql defaults.
type DataSourceConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DataSource is a pooled relational datastore connector.
//
// It is a prometheus.Collector reporting database/sql pool statistics.
type DataSource struct {
	serviceID string
	driver    string
	addr      string
	database  string

	db    *sql.DB
	stats prometheus.Collector
}

// NewDataSource builds a DataSource from a MySQL or PostgreSQL binding.
// cfg may be nil.
//
// An unusable binding (unknown URI scheme, missing host) is reported as a
// *cloud.ServiceBindingNotFoundError of kind KindDatastore.
func NewDataSource(b cloud.ServiceBinding, cfg *DataSourceConfig) (*DataSource, error) {
	creds := readCredentials(b)
	if err := creds.validate(); err != nil {
		return nil, unsuitable(b, KindDatastore, err.Error())
	}

	ep, err := datastoreEndpoint(b, creds)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	switch ep.driver {
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.Net = "tcp"
		mc.Addr = ep.addr
		mc.User = ep.user
		mc.Passwd = ep.password
		mc.DBName = ep.database
		mc.ParseTime = true
		conn, err := mysql.NewConnector(mc)
		if err != nil {
			return nil, unsuitable(b, KindDatastore, err.Error())
		}
		db = sql.OpenDB(conn)
	case DriverPostgres:
		conn, err := pq.NewConnector(ep.url())
		if err != nil {
			return nil, unsuitable(b, KindDatastore, err.Error())
		}
		db = sql.OpenDB(conn)
	}

	ds := newDataSource(b.Name, ep.driver, db, cfg)
	ds.addr = ep.addr
	ds.database = ep.database
	return ds, nil
}

func newDataSource(serviceID, driver string, db *sql.DB, cfg *DataSourceConfig) *DataSource {
	if cfg != nil {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
		if cfg.ConnMaxIdleTime > 0 {
			db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
		}
	}
	return &DataSource{
		serviceID: serviceID,
		driver:    driver,
		db:        db,
		stats:     collectors.NewDBStatsCollector(db, serviceID),
	}
}

// ServiceID returns the name of the binding the DataSource was built from.
func (d *DataSource) ServiceID() string { return d.serviceID }

// Driver returns DriverMySQL or DriverPostgres.
func (d *DataSource) Driver() string { return d.driver }

// Addr returns host:port of the datastore.
func (d *DataSource) Addr() string { return d.addr }

// Database returns the database (schema) name.
func (d *DataSource) Database() string { return d.database }

// DB returns the underlying pool.
func (d *DataSource) DB() *sql.DB { return d.db }

// PingContext verifies a connection can be established.
func (d *DataSource) PingContext(ctx context.Context) error { return d.db.PingContext(ctx) }

// Close closes the pool.
func (d *DataSource) Close() error { return d.db.Close() }

// Describe implements prometheus.Collector.
func (d *DataSource) Describe(ch chan<- *prometheus.Desc) { d.stats.Describe(ch) }

// Collect implements prometheus.Collector.
func (d *DataSource) Collect(ch chan<- prometheus.Metric) { d.stats.Collect(ch) }

type endpoint struct {
	driver   string
	addr     string
	user     string
	password string
	database string
}

func (e endpoint) url() string {
	u := url.URL{Scheme: e.driver, Host: e.addr, Path: "/" + e.database}
	if e.user != "" {
		u.User = url.UserPassword(e.user, e.password)
	}
	return u.String()
}

func datastoreEndpoint(b cloud.ServiceBinding, c endpointCredentials) (endpoint, error) {
	if c.URI == "" {
		ep := endpoint{
			driver:   driverFromMetadata(b),
			user:     c.Username,
			password: c.Password,
			database: c.Name,
		}
		ep.addr = net.JoinHostPort(c.Hostname, portOr(c.Port, defaultPort(ep.driver)))
		return ep, nil
	}

	u, err := url.Parse(c.URI)
	if err != nil {
		return endpoint{}, unsuitable(b, KindDatastore, err.Error())
	}
	var driver string
	switch strings.ToLower(u.Scheme) {
	case "mysql":
		driver = DriverMySQL
	case "postgres", "postgresql":
		driver = DriverPostgres
	default:
		return endpoint{}, unsuitable(b, KindDatastore, "unsupported scheme "+strconv.Quote(u.Scheme))
	}
	if u.Hostname() == "" {
		return endpoint{}, unsuitable(b, KindDatastore, "uri has no host")
	}

	ep := endpoint{
		driver:   driver,
		addr:     net.JoinHostPort(u.Hostname(), portOr(u.Port(), defaultPort(driver))),
		user:     u.User.Username(),
		database: strings.TrimPrefix(u.Path, "/"),
	}
	ep.password, _ = u.User.Password()
	if ep.user == "" {
		ep.user, ep.password = c.Username, c.Password
	}
	return ep, nil
}

func driverFromMetadata(b cloud.ServiceBinding) string {
	if strings.Contains(strings.ToLower(b.Label), "postgres") || b.HasTag("postgres") || b.HasTag("postgresql") {
		return DriverPostgres
	}
	return DriverMySQL
}

func defaultPort(driver string) string {
	if driver == DriverPostgres {
		return "5432"
	}
	return "3306"
}

func portOr(port, def string) string {
	if port == "" {
		return def
	}
	return port
}
