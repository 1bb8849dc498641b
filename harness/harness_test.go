package harness

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestScenarios runs every registered §8 Testable Property as its own
// subtest, so a single failing scenario doesn't hide the rest.
func TestScenarios(t *testing.T) {
	for _, sc := range Scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			res := Run(sc)
			require.True(t, res.Passed, res.Detail)
		})
	}
}

func TestRunAllMatchesScenarioCount(t *testing.T) {
	results := RunAll()
	require.Len(t, results, len(Scenarios))
	for _, r := range results {
		require.True(t, r.Passed, "%s: %s", r.Name, r.Detail)
	}
}

func TestParseTestHeader(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		wantOK bool
		want   Expect
	}{
		{
			name:   "stdout header",
			src:    "# test: {\"stdout\": \"hello\\n\"}\nfn main() -> void:\n    pass\n",
			wantOK: true,
			want:   Expect{Stdout: "hello\n"},
		},
		{
			name:   "exit code header",
			src:    "# test: {\"exit_code\": 5}\nfn main() -> i32:\n    return 5\n",
			wantOK: true,
			want:   Expect{ExitCode: intPtr(5)},
		},
		{
			name:   "compile error header",
			src:    "# test: {\"compile_error\": \"undefined name\"}\nfn main():\n    pass\n",
			wantOK: true,
			want:   Expect{CompileErrorContains: "undefined name"},
		},
		{
			name:   "missing header",
			src:    "fn main() -> void:\n    pass\n",
			wantOK: false,
		},
		{
			name:   "malformed json",
			src:    "# test: {not json}\nfn main() -> void:\n    pass\n",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTestHeader(tt.src)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				require.Equal(t, tt.want, got)
			}
		})
	}
}

// TestScenarioSourcesRoundTripHeaders checks every scenario's own
// documentation Source against ParseTestHeader, since Source is never
// otherwise exercised (there is no lexer/parser in scope to run it
// through) — this is the only thing keeping Source in sync with Want.
func TestScenarioSourcesRoundTripHeaders(t *testing.T) {
	for _, sc := range Scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			got, ok := ParseTestHeader(sc.Source)
			require.True(t, ok, "scenario %q: Source missing a parseable `# test:` header", sc.Name)
			require.Equal(t, sc.Want, got)
		})
	}
}

func intPtr(v int) *int { return &v }
