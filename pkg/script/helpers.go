package script

import (
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	xansi "github.com/charmbracelet/x/ansi"
	"github.com/dop251/goja"
	"github.com/pkg/errors"
)

const helpersJS = `
(function(){
  function parseJSON(line) {
    try { return JSON.parse(line); } catch (e) { return null; }
  }

  function extract(line, re, group) {
    if (typeof line !== "string") return null;
    if (!(re instanceof RegExp)) return null;
    const m = re.exec(line);
    if (!m) return null;
    const idx = (typeof group === "number") ? group : 1;
    const v = m[idx];
    return (typeof v === "string") ? v : null;
  }

  function startsWithAny(line, prefixes) {
    if (typeof line !== "string" || !Array.isArray(prefixes)) return false;
    for (const p of prefixes) {
      if (line.startsWith(p)) return true;
    }
    return false;
  }

  globalThis.log = { parseJSON, extract, startsWithAny };
})();
`

func injectHelpers(m *Module) error {
	if _, err := m.vm.RunScript("livelog:helpers", helpersJS); err != nil {
		return errors.Wrap(err, "load helpers")
	}
	logObj := m.vm.Get("log").ToObject(m.vm)

	// log.strip(line) removes escape sequences.
	if err := logObj.Set("strip", func(s string) string {
		return xansi.Strip(s)
	}); err != nil {
		return errors.Wrap(err, "set log.strip")
	}

	// log.parseTimestamp(value) accepts unix seconds, unix milliseconds or
	// any date string and returns a Date, or null.
	if err := logObj.Set("parseTimestamp", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 || isNullish(call.Arguments[0]) {
			return goja.Null()
		}
		t, ok := parseTimestamp(call.Arguments[0].Export())
		if !ok {
			return goja.Null()
		}
		d, err := m.vm.New(m.vm.Get("Date"), m.vm.ToValue(t.UnixMilli()))
		if err != nil {
			return goja.Null()
		}
		return d
	}); err != nil {
		return errors.Wrap(err, "set log.parseTimestamp")
	}
	return nil
}

func parseTimestamp(v any) (time.Time, bool) {
	numeric := func(i int64) time.Time {
		if i > 0 && i < 1_000_000_000_000 {
			return time.Unix(i, 0).UTC()
		}
		return time.UnixMilli(i).UTC()
	}
	switch vv := v.(type) {
	case time.Time:
		return vv, true
	case int64:
		return numeric(vv), true
	case float64:
		return numeric(int64(vv)), true
	case string:
		s := strings.TrimSpace(vv)
		if s == "" {
			return time.Time{}, false
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return numeric(i), true
		}
		t, err := dateparse.ParseAny(s)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}
