package logline

import (
	"testing"
	"time"

	"github.com/go-go-golems/livelog/pkg/ansi"
	"github.com/stretchr/testify/require"
)

func TestParseArrayAndNDJSON(t *testing.T) {
	lines, err := Parse([]byte(`[{"pos":0,"time":1700000000,"out":"a\n"},{"pos":1,"time":"2023-11-14T22:13:21Z","level":"warn","out":"b"}]`))
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, time.Unix(1700000000, 0), lines[0].Time.Time)
	require.Equal(t, time.Date(2023, 11, 14, 22, 13, 21, 0, time.UTC), lines[1].Time.UTC())

	lines, err = Parse([]byte("{\"pos\":0,\"out\":\"x\"}\n\n{\"pos\":1,\"out\":\"y\"}\n"))
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, "y", lines[1].Out)
	require.True(t, lines[0].Time.IsZero())

	lines, err = Parse([]byte("  "))
	require.NoError(t, err)
	require.Empty(t, lines)

	_, err = Parse([]byte("{\"pos\":0}\nnot json\n"))
	require.ErrorContains(t, err, "line 2")
}

func TestFormatLine(t *testing.T) {
	l := Line{Pos: 4, Time: Timestamp{time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}, Level: "info", Out: "done\r\n"}
	require.Equal(t, "5  info  03:04:05  done\n", Format(l, time.UTC))
	require.Equal(t, "1      x\n", Format(Line{Out: "x"}, time.UTC))
}

func TestFormatterPassesRawChunks(t *testing.T) {
	f := &Formatter{Next: ansi.NewFormatter(), Loc: time.UTC}
	require.Equal(t, "&lt;raw&gt;\n", f.Format("<raw>\n"))
	require.Equal(t, "1  debug    <hi\n", f.Text(`{"pos":0,"level":"debug","out":"<hi"}`))
	require.Equal(t, "1  debug    &lt;hi\n", f.Format(`{"pos":0,"level":"debug","out":"<hi"}`))
	require.Equal(t, "{broken", f.Text("{broken"))
}

func TestTextLines(t *testing.T) {
	require.Equal(t, []string{"1  info    a\n", "2      b\n"},
		TextLines([]byte(`[{"pos":0,"level":"info","out":"a"},{"pos":1,"out":"b"}]`), time.UTC))
	require.Equal(t, []string{"$ make\n", "ok\n"}, TextLines([]byte("$ make\nok\n"), time.UTC))
	require.Equal(t, []string{"{not json\n", "x"}, TextLines([]byte("{not json\nx"), time.UTC))
	require.Nil(t, TextLines(nil, time.UTC))
}
