// Package app implements the DB-backed login/register verification glue
// named throughout spec.md §4.8/§6/§8 — the "application" the core serves
// on top of the parser, response builder, and DB pool. Grounded on
// original_source/code/http/httprequest.h's ParsePost_/UserVerify and the
// DEFAULT_HTML/DEFAULT_HTML_TAG tables.
package app

import (
	"github.com/s00inx/reactorhttpd/internal/applog"
	"github.com/s00inx/reactorhttpd/internal/dbpool"
)

// Auth wraps a dbpool.Pool with the username/password verification logic
// spec.md §4.8 describes, exposed as the Verify callback internal/httpserver
// dispatches login/register requests through.
type Auth struct {
	pool *dbpool.Pool
	log  *applog.Logger
}

// New constructs an Auth backed by pool, logging verification failures via
// log per spec.md §7's "Backend" error kind.
func New(pool *dbpool.Pool, log *applog.Logger) *Auth {
	return &Auth{pool: pool, log: log}
}

// Verify mirrors UserVerify: acquires a DB handle under a scoped guard,
// checks (for login) or inserts (for register) the username/password row,
// and always releases the handle regardless of outcome.
func (a *Auth) Verify(username, password string, isLogin bool) bool {
	g := a.pool.NewGuard()
	defer g.Release()

	if g.Handle == nil {
		if a.log != nil {
			a.log.Errorf("app: auth acquire returned a nil handle")
		}
		return false
	}

	rows, err := g.Handle.Query(
		"SELECT username,password FROM user WHERE username=? LIMIT 1", username,
	)
	if err != nil {
		if a.log != nil {
			a.log.Errorf("app: auth query failed: %v", err)
		}
		return false
	}
	defer rows.Close()

	var dbUser, dbPass string
	found := false
	if rows.Next() {
		if err := rows.Scan(&dbUser, &dbPass); err != nil {
			if a.log != nil {
				a.log.Errorf("app: auth scan failed: %v", err)
			}
			return false
		}
		found = true
	}

	if isLogin {
		return found && dbPass == password
	}

	// Register: succeed only if the username is free.
	if found {
		return false
	}
	_, err = g.Handle.Exec(
		"INSERT INTO user(username,password) VALUES(?,?)", username, password,
	)
	if err != nil {
		if a.log != nil {
			a.log.Errorf("app: auth insert failed: %v", err)
		}
		return false
	}
	return true
}
