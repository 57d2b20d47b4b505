// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package shared

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// CLI style colors using lipgloss
var (
	// StatusOK styles success indicators
	StatusOK = lipgloss.NewStyle().Foreground(lipgloss.Color("42")) // green

	// StatusWarn styles warning indicators
	StatusWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange

	// StatusError styles error indicators
	StatusError = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red

	// Muted styles secondary/less important text
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray

	// Header styles section headers
	Header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")) // blue bold
)

// Symbols for status indicators
const (
	SymbolOK    = "✓"
	SymbolWarn  = "⚠"
	SymbolError = "✗"
)

// IsTTY reports whether w is a color-capable terminal. NO_COLOR and a
// dumb or missing TERM disable styling.
func IsTTY(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if t := os.Getenv("TERM"); t == "dumb" || t == "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Styler applies styles only when writing to a terminal.
type Styler struct {
	enabled bool
}

// NewStyler returns a Styler for w.
func NewStyler(w io.Writer) Styler {
	return Styler{enabled: IsTTY(w)}
}

// Render renders s with style when styling is enabled.
func (st Styler) Render(style lipgloss.Style, s string) string {
	if !st.enabled {
		return s
	}
	return style.Render(s)
}

// Status renders a success or failure indicator followed by msg.
func (st Styler) Status(ok bool, msg string) string {
	if ok {
		return st.Render(StatusOK, SymbolOK) + " " + msg
	}
	return st.Render(StatusError, SymbolError) + " " + msg
}

// Warn renders a warning indicator followed by msg.
func (st Styler) Warn(msg string) string {
	return st.Render(StatusWarn, SymbolWarn) + " " + msg
}
