package api

import _ "embed"

// DashboardHTML is the placeholder static document served at GET /. The
// operator progress dashboard itself is out of scope (spec.md §1) and is
// built and deployed as a separate artifact; this page only exists so GET /
// returns something reasonable.
//
//go:embed dashboard.html
var DashboardHTML []byte
