// Package sheets implements the row sink on a Google Sheet using a
// service account. Rows are appended with USER_ENTERED semantics so the
// sheet parses dates and numbers the way a human entry would.
package sheets
