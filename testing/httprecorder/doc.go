/*
Package httprecorder records the HTTP requests a piece of code makes, in the order it
makes them, so they can later be checked against what a test expected.

Requests can be recorded on the way out of a client (see httpnetrecorder.Transport) or
on the way into a fake server (see httpnetrecorder.Middleware and ginrecorder).
*/
package httprecorder
