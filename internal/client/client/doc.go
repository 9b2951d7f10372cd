// Package client is the msgbox TCP client: it dials the server with a
// bounded number of retries and exchanges one Request line for one Response
// line at a time.
package client
