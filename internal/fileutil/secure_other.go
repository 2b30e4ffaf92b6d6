//go:build !unix

package fileutil

// No O_NOFOLLOW equivalent; the rename-based write path still avoids
// writing through a link.
const oNoFollow = 0
