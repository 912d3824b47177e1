// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build tools

// Package main pins the test runner CLIs to go.mod so `go run` uses the
// versions the test suites are written against.
package main

import (
	// Runs the ginkgo suites under internal/store and the integration tests.
	_ "github.com/onsi/ginkgo/v2/ginkgo"
)
