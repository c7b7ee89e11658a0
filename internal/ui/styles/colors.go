// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// All colors are AdaptiveColor so light and dark terminals both read well.

// =============================================================================
// ACCENTS
// =============================================================================

// Purple marks assistant output and the Card frame.
var Purple = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}

// Cyan marks the brand, the composer prompt and user text.
var Cyan = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}

// Emerald marks success and a live connection.
var Emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}

// Rose marks errors and a lost connection.
var Rose = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

// Amber marks warnings and in-progress work.
var Amber = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// =============================================================================
// SURFACES AND TEXT
// =============================================================================

var (
	SurfaceDim    = lipgloss.AdaptiveColor{Light: "#F5F5F5", Dark: "#181825"}
	SurfaceBright = lipgloss.AdaptiveColor{Light: "#FAFAFA", Dark: "#313244"}
	Overlay       = lipgloss.AdaptiveColor{Light: "#E5E5E5", Dark: "#313244"}

	TextPrimary   = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#CDD6F4"}
	TextSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}
	TextMuted     = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}
	TextInverse   = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#1E1E2E"}
)

// =============================================================================
// ENTRY COLORS
// =============================================================================

var (
	UserFg    = lipgloss.AdaptiveColor{Light: "#1E40AF", Dark: "#E0F2FE"}
	UserBg    = lipgloss.AdaptiveColor{Light: "#DBEAFE", Dark: "#1D4ED8"}
	AgentFg   = lipgloss.AdaptiveColor{Light: "#5B4B8A", Dark: "#E9E4F5"}
	ThoughtFg = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9399B2"}
	DebugFg   = lipgloss.AdaptiveColor{Light: "#065F46", Dark: "#A7F3D0"}
	DebugBg   = lipgloss.AdaptiveColor{Light: "#D1FAE5", Dark: "#064E3B"}
	ErrorFg   = lipgloss.AdaptiveColor{Light: "#991B1B", Dark: "#FECACA"}
	ErrorBg   = lipgloss.AdaptiveColor{Light: "#FEE2E2", Dark: "#881337"}
	MatchBg   = lipgloss.AdaptiveColor{Light: "#FEF3C7", Dark: "#78350F"}
)
