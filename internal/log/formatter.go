package log

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

const componentKey = "component"

// callerSkip reaches the user frame from Format when ReportCaller is off.
const callerSkip = 8

type formatter struct {
	pattern string
	time    string
}

// Format expands the placeholders %time, %level, %component, %field, %msg,
// %caller, %func and %goroutine in the configured pattern. When the pattern
// names %component, that field is left out of %field.
func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	withComponent := strings.Contains(f.pattern, "%component")

	output := f.pattern
	output = strings.Replace(output, "%time", entry.Time.Format(f.time), 1)
	output = strings.Replace(output, "%level", entry.Level.String(), 1)
	if withComponent {
		output = strings.Replace(output, "%component", component(entry), 1)
	}
	output = strings.Replace(output, "%field", buildFields(entry, withComponent), 1)
	output = strings.Replace(output, "%msg", entry.Message, 1)
	if strings.Contains(output, "%caller") || strings.Contains(output, "%func") {
		fn, file, line := callerFrame(entry)
		output = strings.Replace(output, "%caller", callerString(fn, file, line), 1)
		output = strings.Replace(output, "%func", funcName(fn), 1)
	}
	output = strings.Replace(output, "%goroutine", getGoroutineID(), 1)
	return []byte(output), nil
}

func component(entry *logrus.Entry) string {
	if c, ok := entry.Data[componentKey].(string); ok && c != "" {
		return c
	}
	return "-"
}

// callerFrame returns the logging call site. line is 0 when unknown.
func callerFrame(entry *logrus.Entry) (fn, file string, line int) {
	if entry.HasCaller() {
		return entry.Caller.Function, entry.Caller.File, entry.Caller.Line
	}
	pc, file, line, ok := runtime.Caller(callerSkip)
	if !ok {
		return "", "", 0
	}
	if f := runtime.FuncForPC(pc); f != nil {
		fn = f.Name()
	}
	return fn, file, line
}

// callerString renders package/file.go:line.
func callerString(fn, file string, line int) string {
	if line == 0 {
		return "unknown"
	}
	// The module path may itself contain dots, so cut at the last slash first.
	pkg := fn
	if slash := strings.LastIndex(pkg, "/"); slash != -1 {
		pkg = pkg[slash+1:]
	}
	if dot := strings.Index(pkg, "."); dot != -1 {
		pkg = pkg[:dot]
	}
	if pkg == "" {
		pkg = "unknown"
	}
	return fmt.Sprintf("%s/%s:%d", pkg, filepath.Base(file), line)
}

// funcName renders the bare function or method name.
func funcName(fn string) string {
	if fn == "" {
		return "unknown"
	}
	if dot := strings.LastIndex(fn, "."); dot != -1 && dot+1 < len(fn) {
		return fn[dot+1:]
	}
	return fn
}

// getGoroutineID parses the id out of the current stack header.
func getGoroutineID() string {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	stack := strings.TrimPrefix(string(buf[:n]), "goroutine ")
	if id := strings.Fields(stack); len(id) > 0 {
		return id[0]
	}
	return "unknown"
}

// buildFields renders entry fields as key=value pairs sorted by key.
func buildFields(entry *logrus.Entry, skipComponent bool) string {
	keys := make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		if skipComponent && key == componentKey {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fields := make([]string, 0, len(keys))
	for _, key := range keys {
		var s string
		switch v := entry.Data[key].(type) {
		case string:
			s = v
		case error:
			s = v.Error()
		default:
			s = fmt.Sprint(v)
		}
		fields = append(fields, key+"="+s)
	}
	return strings.Join(fields, ",")
}
