// Package session is the application-facing boundary over the document
// store. It generates game ids, applies partial updates through the merge
// engine and reports every outcome as an ok flag: missing, expired and
// corrupt documents all read as "no such session", with the distinction
// kept in the logs.
package session
