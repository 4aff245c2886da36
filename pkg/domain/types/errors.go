package types

import "github.com/m-mizutani/goerr/v2"

// Error tags classify failures by how the run must react to them.
//
// config and state are fatal: they abort the run with a nonzero exit before
// (config, state load) or after (state save) the per-source pass. fetch,
// parse and delivery are recovered: the failing source or notification is
// logged and skipped, and the run continues.
var (
	ErrTagConfig   = goerr.NewTag("config")
	ErrTagState    = goerr.NewTag("state")
	ErrTagFetch    = goerr.NewTag("fetch")
	ErrTagParse    = goerr.NewTag("parse")
	ErrTagDelivery = goerr.NewTag("delivery")
)
