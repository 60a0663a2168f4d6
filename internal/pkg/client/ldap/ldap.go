// Package ldap provides an identity source backed by an LDAP directory of
// posixAccount/posixGroup entries, for sites where getent does not see the
// full directory.
package ldap

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	gldap "github.com/go-ldap/ldap/v3"

	"slurmtools/config"
	"slurmtools/internal/pkg/model"
)

// Client wraps an established LDAP connection.
type Client struct {
	Conn   *gldap.Conn
	BaseDN string
}

// Close closes the underlying LDAP connection.
func (c *Client) Close() {
	if c != nil && c.Conn != nil {
		c.Conn.Close()
	}
}

// New creates and binds an LDAP client connection based on the provided
// config. It supports plain LDAP, LDAPS, and STARTTLS, optional custom CAs
// and client certs, and connect/read timeouts.
func New(cfg config.LDAP) (*Client, error) {
	tlsCfg, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	scheme := "ldap"
	if cfg.UseTLS {
		scheme = "ldaps"
	}
	addr := fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port)

	var opts []gldap.DialOpt
	if tlsCfg != nil {
		opts = append(opts, gldap.DialWithTLSConfig(tlsCfg))
	}
	if d := connectDialer(cfg); d != nil {
		opts = append(opts, gldap.DialWithDialer(d))
	}

	conn, err := gldap.DialURL(addr, opts...)
	if err != nil {
		return nil, err
	}

	// STARTTLS upgrade is not needed when already using LDAPS.
	if cfg.StartTLS && !cfg.UseTLS {
		if err := conn.StartTLS(tlsCfg); err != nil {
			conn.Close()
			return nil, err
		}
	}

	if rt := parseDuration(cfg.ReadTimeout); rt > 0 {
		conn.SetTimeout(rt)
	}

	if cfg.BindDN != "" || cfg.BindPassword != "" {
		if err := conn.Bind(cfg.BindDN, cfg.BindPassword); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return &Client{Conn: conn, BaseDN: cfg.BaseDN}, nil
}

// buildTLSConfig constructs a tls.Config based on config.LDAP. Returns nil
// if no TLS options are needed and UseTLS/StartTLS are false.
func buildTLSConfig(cfg config.LDAP) (*tls.Config, error) {
	needsTLS := cfg.UseTLS || cfg.StartTLS || cfg.InsecureSkipVerify || cfg.RootCAFile != "" || cfg.ClientCertFile != "" || cfg.ClientKeyFile != "" || cfg.ServerName != ""
	if !needsTLS {
		return nil, nil
	}

	tlsCfg := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // configurable for testing/non-prod
	}
	if cfg.ServerName != "" {
		tlsCfg.ServerName = cfg.ServerName
	}

	if cfg.RootCAFile != "" {
		pem, err := os.ReadFile(cfg.RootCAFile)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to parse root CA file: %s", cfg.RootCAFile)
		}
		tlsCfg.RootCAs = pool
	}

	if cfg.ClientCertFile != "" || cfg.ClientKeyFile != "" {
		if cfg.ClientCertFile == "" || cfg.ClientKeyFile == "" {
			return nil, fmt.Errorf("both clientCertFile and clientKeyFile must be set")
		}
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertFile, cfg.ClientKeyFile)
		if err != nil {
			return nil, err
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return tlsCfg, nil
}

// connectDialer builds a net.Dialer with the configured connect timeout.
func connectDialer(cfg config.LDAP) *net.Dialer {
	if ct := parseDuration(cfg.ConnectTimeout); ct > 0 {
		return &net.Dialer{Timeout: ct}
	}
	return nil
}

// parseDuration returns 0 on empty or invalid duration strings.
func parseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

const pageSize = 500

// Groups searches ou=Groups,<BaseDN> for posixGroup entries and returns
// them sorted by gidNumber. Names are lower-cased to match Slurm account
// naming.
func (c *Client) Groups(ctx context.Context) ([]model.Group, error) {
	if c == nil || c.Conn == nil {
		return nil, fmt.Errorf("nil ldap client or connection")
	}
	base := fmt.Sprintf("ou=Groups,%s", c.BaseDN)
	req := gldap.NewSearchRequest(
		base,
		gldap.ScopeSingleLevel,
		gldap.NeverDerefAliases,
		0,
		0,
		false,
		"(objectClass=posixGroup)",
		[]string{"cn", "gidNumber"},
		nil,
	)
	res, err := c.Conn.SearchWithPaging(req, pageSize)
	if err != nil {
		return nil, err
	}
	groups := make([]model.Group, 0, len(res.Entries))
	for _, e := range res.Entries {
		gid, err := strconv.Atoi(e.GetAttributeValue("gidNumber"))
		if err != nil {
			continue
		}
		cn := strings.TrimSpace(e.GetAttributeValue("cn"))
		if cn == "" {
			continue
		}
		groups = append(groups, model.Group{Name: strings.ToLower(cn), GID: gid})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].GID < groups[j].GID })
	return groups, nil
}

// Users searches ou=Peoples,<BaseDN> for posixAccount entries and returns
// them sorted by uidNumber. Entries missing uidNumber or gidNumber are
// skipped.
func (c *Client) Users(ctx context.Context) ([]model.Identity, error) {
	if c == nil || c.Conn == nil {
		return nil, fmt.Errorf("nil ldap client or connection")
	}
	base := fmt.Sprintf("ou=Peoples,%s", c.BaseDN)
	req := gldap.NewSearchRequest(
		base,
		gldap.ScopeSingleLevel,
		gldap.NeverDerefAliases,
		0,
		0,
		false,
		"(objectClass=posixAccount)",
		[]string{"uid", "uidNumber", "gidNumber", "cn", "gecos", "homeDirectory", "loginShell"},
		nil,
	)
	res, err := c.Conn.SearchWithPaging(req, pageSize)
	if err != nil {
		return nil, err
	}
	users := make([]model.Identity, 0, len(res.Entries))
	for _, e := range res.Entries {
		uid, err := strconv.Atoi(e.GetAttributeValue("uidNumber"))
		if err != nil {
			continue
		}
		gid, err := strconv.Atoi(e.GetAttributeValue("gidNumber"))
		if err != nil {
			continue
		}
		name := strings.TrimSpace(e.GetAttributeValue("uid"))
		if name == "" {
			continue
		}
		full := e.GetAttributeValue("gecos")
		if full == "" {
			full = e.GetAttributeValue("cn")
		}
		users = append(users, model.Identity{
			Username: name,
			UID:      uid,
			GID:      gid,
			FullName: full,
			HomeDir:  e.GetAttributeValue("homeDirectory"),
			Shell:    e.GetAttributeValue("loginShell"),
		})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UID < users[j].UID })
	return users, nil
}
