// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package minihttpd is a small HTTP/1.1 static file server.
//
// Every accepted connection gets exactly one request and one response.
// Only GET is served. POST, PATCH, PUT and DELETE are answered with
// 501 Not Implemented and any other method drops the connection.
//
// The packages are layered, leaves first:
//
//   - status: the closed set of status codes and their phrases
//   - mediatype: file extension to content type table
//   - response: response header serialization
//   - fileroot: maps request paths onto a served root, rejecting ".."
//   - dispatch: parses a request and routes it by method
//   - server: the accept loop
//
// Run merges config sources into a [Config], builds an [App] from it and
// runs it. [ExitCode] turns the result into a process exit code:
//
//	err := minihttpd.Run(
//	    ctx,
//	    minihttpd.AppBuilderFunc(build),
//	    minihttpd.Sources(minihttpd.ConfigFile(minihttpd.DefaultConfigFile, false))...,
//	)
//	os.Exit(minihttpd.ExitCode(err))
package minihttpd
