package testsupport

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"uploadflow/internal/services"
	"uploadflow/internal/toolexec"
)

// SampleChaptersJSON is the document the fake chapter maker writes.
const SampleChaptersJSON = `{"chapters":"00:00 Intro\n02:15 Setup\n10:40 Wrap-up","suggested_titles":["Title A","Title B","Title C"]}`

// ToolEffect simulates the filesystem side effects of a tool.
type ToolEffect func(cmd toolexec.Command, args []string) error

// FakeTools is a toolexec.Runner that records invocations and writes the
// files the real pipeline tools would produce.
type FakeTools struct {
	// Runner is the configured runner prefix, if any.
	Runner string

	mu      sync.Mutex
	calls   []toolexec.Command
	fail    map[string]int
	effects map[string]ToolEffect
}

// NewFakeTools returns a runner simulating the default tool names.
func NewFakeTools() *FakeTools {
	return &FakeTools{
		fail: make(map[string]int),
		effects: map[string]ToolEffect{
			"color_edit": func(cmd toolexec.Command, _ []string) error {
				return os.WriteFile(filepath.Join(cmd.Dir, "output.mp4"), []byte("edited"), 0o644)
			},
			"whisper": func(cmd toolexec.Command, args []string) error {
				video := args[len(args)-1]
				stem := strings.TrimSuffix(filepath.Base(video), filepath.Ext(video))
				return os.WriteFile(filepath.Join(cmd.Dir, stem+".srt"), []byte("1\n00:00:00,000 --> 00:00:02,000\nhello\n"), 0o644)
			},
			"yt_chapter_maker": func(cmd toolexec.Command, _ []string) error {
				return os.WriteFile(filepath.Join(cmd.Dir, "chapters_and_suggested_titles.json"), []byte(SampleChaptersJSON), 0o644)
			},
		},
	}
}

// FailWith makes tool exit with code without producing output.
func (f *FakeTools) FailWith(tool string, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[tool] = code
}

// SetEffect replaces the simulated side effect for tool.
func (f *FakeTools) SetEffect(tool string, effect ToolEffect) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.effects[tool] = effect
}

// Run implements toolexec.Runner.
func (f *FakeTools) Run(_ context.Context, cmd toolexec.Command) error {
	tool, args := cmd.Name, cmd.Args
	if f.Runner != "" && cmd.Name == f.Runner && len(args) > 0 {
		tool, args = args[0], args[1:]
	}
	tool = filepath.Base(tool)

	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	code, failing := f.fail[tool]
	effect := f.effects[tool]
	f.mu.Unlock()

	if failing {
		return services.Wrap(services.ErrExternalTool, "", tool, "", &toolexec.ExitError{Name: tool, Args: args, Code: code})
	}
	if effect != nil {
		return effect(cmd, args)
	}
	return nil
}

// Calls returns a copy of every recorded invocation.
func (f *FakeTools) Calls() []toolexec.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]toolexec.Command(nil), f.calls...)
}

// CallsTo counts the invocations of tool.
func (f *FakeTools) CallsTo(tool string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, cmd := range f.calls {
		name := cmd.Name
		if f.Runner != "" && name == f.Runner && len(cmd.Args) > 0 {
			name = cmd.Args[0]
		}
		if filepath.Base(name) == tool {
			count++
		}
	}
	return count
}

// Reset clears recorded invocations.
func (f *FakeTools) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}
