// Package api serves the mailbox dashboard HTTP API: session sign-in, the
// signed-in user's mailboxes and activity, the hosting panel proxy, the
// placeholder mail endpoints and the administrator dashboard.
package api
