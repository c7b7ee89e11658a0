// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

// changedMsg is sent when the window reports a change.
type changedMsg struct{}

// noticeMsg shows a transient line in the status area.
type noticeMsg struct {
	text  string
	isErr bool
}
