package cmds

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func newTestRoot(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	root := &cobra.Command{Use: "livelog", SilenceUsage: true}
	AddRootFlags(root)
	require.NoError(t, AddCommands(root))
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	return root, out
}

func TestRootOptionsMergeConfigAndFlags(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, ".livelog.yaml")
	cfg := "server: https://ci.example.com/\nscope: acme\nfps: 30\nmax_block_size: 10\nauto_follow: false\npaths:\n  stream: /logs/%s/live\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	t.Setenv("LIVELOG_TOKEN", "from-env")

	root, _ := newTestRoot(t)
	var got rootOptions
	root.AddCommand(&cobra.Command{
		Use: "check",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			got, err = getRootOptions(cmd)
			return err
		},
	})
	root.SetArgs([]string{"--config", cfgPath, "--fps", "15", "--scope", "other", "check"})
	require.NoError(t, root.Execute())

	require.Equal(t, "https://ci.example.com", got.Server)
	require.Equal(t, "other", got.Scope)
	require.Equal(t, "from-env", got.Token)
	require.Equal(t, 15, got.FPS)
	require.Equal(t, 10, got.MaxBlockSize)
	require.False(t, got.AutoFollow)
	require.Equal(t, 30*time.Second, got.Timeout)
	require.Equal(t, "/logs/42/live", resolvePath(got.Paths.Stream, "42"))
}

func TestRootOptionsRejectBadValues(t *testing.T) {
	root, _ := newTestRoot(t)
	root.AddCommand(&cobra.Command{
		Use: "check",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := getRootOptions(cmd)
			return err
		},
	})
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "--fps", "0", "check"})
	require.Error(t, root.Execute())
}

func TestResolvePath(t *testing.T) {
	require.Equal(t, "/raw/path", resolvePath("", "/raw/path"))
	require.Equal(t, "/raw/path", resolvePath("/no/placeholder", "/raw/path"))
	require.Equal(t, "/builds/7/log", resolvePath("/builds/%s/log", "7"))
}

func TestRenderWritesFoldedHTML(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "build.log")
	require.NoError(t, os.WriteFile(logPath, []byte("$ make\n\x1b[32mok\x1b[0m\n$ make test\n<b>\ntail"), 0o644))
	outPath := filepath.Join(dir, "out.html")

	root, _ := newTestRoot(t)
	root.SetArgs([]string{"--config", filepath.Join(dir, "none.yaml"), "--fps", "240", "--max-block-size", "2", "render", logPath, "-o", outPath})
	require.NoError(t, root.Execute())

	b, err := os.ReadFile(outPath)
	require.NoError(t, err)
	html := string(b)
	require.Contains(t, html, "<title>$ make</title>")
	require.Contains(t, html, `<details class="fold" id="fold-1" open>`)
	require.Contains(t, html, `<details class="fold" id="fold-2" open>`)
	require.Contains(t, html, "color:lime")
	require.Contains(t, html, "&lt;b&gt;")
	require.Contains(t, html, `data-pos="5">tail</div>`)
}

func TestRenderWithFoldScript(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "build.log")
	require.NoError(t, os.WriteFile(logPath, []byte("==> deps\nfetch\n#debug\n==> compile\nok\n"), 0o644))
	scriptPath := filepath.Join(dir, "fold.js")
	js := `register({
  fold(line) { return line.startsWith("==> ") ? line.slice(4) : null; },
  rewrite(line) { return line.startsWith("#") ? null : line; },
});`
	require.NoError(t, os.WriteFile(scriptPath, []byte(js), 0o644))

	root, out := newTestRoot(t)
	root.SetArgs([]string{"--config", filepath.Join(dir, "none.yaml"), "--fold-script", scriptPath, "render", "--fragment", logPath})
	require.NoError(t, root.Execute())

	require.Contains(t, out.String(), "<summary>deps</summary>")
	require.Contains(t, out.String(), "<summary>compile</summary>")
	require.NotContains(t, out.String(), "#debug")
}

func TestRenderRejectsBadFoldScript(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "build.log")
	require.NoError(t, os.WriteFile(logPath, []byte("x\n"), 0o644))

	root, _ := newTestRoot(t)
	root.SetArgs([]string{"--config", filepath.Join(dir, "none.yaml"), "--fold-script", filepath.Join(dir, "missing.js"), "render", logPath})
	require.Error(t, root.Execute())
}

func TestRenderStructuredLines(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "build.json")
	payload := `[{"pos":0,"time":0,"out":"$ go build\n"},{"pos":1,"time":0,"out":"done\n"}]`
	require.NoError(t, os.WriteFile(logPath, []byte(payload), 0o644))

	root, out := newTestRoot(t)
	root.SetArgs([]string{"--config", filepath.Join(dir, "none.yaml"), "render", "--fragment", logPath})
	require.NoError(t, root.Execute())

	require.Contains(t, out.String(), "1      $ go build")
	require.Contains(t, out.String(), "2      done")
	require.NotContains(t, out.String(), "<html>")
}

func TestFollowFilePlain(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "build.log")
	require.NoError(t, os.WriteFile(logPath, []byte("$ make\n\x1b[31mfail\x1b[0m\n"), 0o644))
	htmlPath := filepath.Join(dir, "out.html")

	root, out := newTestRoot(t)
	root.SetArgs([]string{"--config", filepath.Join(dir, "none.yaml"), "--fps", "120", "follow", "--file", logPath, "--no-follow", "--plain", "--html-out", htmlPath})
	require.NoError(t, root.Execute())

	require.Equal(t, "$ make\nfail\n", out.String())
	b, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	require.Contains(t, string(b), "color:red")
}

func TestFollowNeedsSource(t *testing.T) {
	root, _ := newTestRoot(t)
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "follow"})
	err := root.Execute()
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "--file"))
}

func TestTerminalSinkStripsAndFolds(t *testing.T) {
	var buf bytes.Buffer
	s := newTerminalSink(&buf, true, true)
	s.Append("$ run\n\x1b[1mbold\x1b[0m\n")
	s.Append("part")
	require.Equal(t, "$ run\nbold\npart", buf.String())
	require.Equal(t, 3, s.logs.Lines())
	require.True(t, s.logs.Blocks[0].Lines[2].Partial)
}

func TestTerminalSinkPlainCarriesSplitEscape(t *testing.T) {
	var buf bytes.Buffer
	s := newTerminalSink(&buf, true, false)
	s.Append("$ run\n\x1b[1")
	s.Append("mbold\x1b[")
	s.Append("0m\n")
	require.Equal(t, "$ run\nbold\n", buf.String())
}
