// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"os"

	"github.com/z5labs/minihttpd/cmd/minihttpd/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute(context.Background(), os.Args[1:]...))
}
