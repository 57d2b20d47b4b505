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

// globals holds the persistent root flags and linker-injected build info.
// Subcommands read them through the getters below.
var globals = struct {
	json     bool
	config   string
	logLevel string

	version, commit, buildDate string
}{
	version:   "dev",
	commit:    "unknown",
	buildDate: "unknown",
}

// RegisterFlagPointers returns the --json, --config and --log-level
// targets for the root command to bind.
func RegisterFlagPointers() (json *bool, config *string, logLevel *string) {
	return &globals.json, &globals.config, &globals.logLevel
}

// SetVersion records build metadata.
func SetVersion(v, c, b string) {
	globals.version, globals.commit, globals.buildDate = v, c, b
}

// GetVersion returns version, commit and build date.
func GetVersion() (string, string, string) {
	return globals.version, globals.commit, globals.buildDate
}

// GetJSON reports whether --json was given.
func GetJSON() bool { return globals.json }

// GetConfigPath returns --config, or "" to use BRAZEGATE_CONFIG or the
// XDG default.
func GetConfigPath() string { return globals.config }

// GetLogLevel returns the --log-level override, if any.
func GetLogLevel() string { return globals.logLevel }

// SetConfigPathForTest overrides --config.
func SetConfigPathForTest(path string) { globals.config = path }

// SetJSONForTest overrides --json.
func SetJSONForTest(v bool) { globals.json = v }
