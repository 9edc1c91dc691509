// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zerolog logger the rest of the client
// components receive by injection.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// New builds a logger at the given level writing to file, or stderr when
// file is empty. Level "disabled" returns a no-op logger.
func New(level, file string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.Disabled {
		return zerolog.Nop(), nil
	}

	var out io.Writer = os.Stderr
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0700); err != nil {
			return zerolog.Nop(), fmt.Errorf("failed to create log directory: %w", err)
		}
		// Log files can carry usernames and client IDs; keep them private.
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}
