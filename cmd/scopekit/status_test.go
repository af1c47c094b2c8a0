// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Scopekit Contributors

package main

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestStatusCommand_Flags(t *testing.T) {
	cmd := NewStatusCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "--timeout") {
		t.Error("Help missing --timeout flag")
	}
	if !strings.Contains(output, "--database-url") {
		t.Error("Help missing --database-url flag")
	}
}

func TestStatusCommand_DefaultTimeout(t *testing.T) {
	cmd := NewStatusCmd()

	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		t.Fatalf("Failed to get timeout flag: %v", err)
	}
	if timeout != 10*time.Second {
		t.Errorf("timeout default = %v, want %v", timeout, 10*time.Second)
	}
}

func TestStatusCommand_NoDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"status"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("Expected error when no database URL is configured")
	}
	if !strings.Contains(err.Error(), "database") {
		t.Errorf("Error should mention the database URL, got: %v", err)
	}
}
