// Package platform wraps filesystem access used by the download lifecycle:
// artifact existence probes, best-effort deletion of final and partial files,
// and the default directories of a desktop session.
package platform
