// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WindowID identifies one window instance. It is generated once at startup
// and never persisted.
type WindowID string

// NewWindowID returns "<unix millis>-<random suffix>".
func NewWindowID(now time.Time) WindowID {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return WindowID(fmt.Sprintf("%d-%s", now.UnixMilli(), suffix))
}

// String returns the id as a plain string.
func (id WindowID) String() string {
	return string(id)
}
