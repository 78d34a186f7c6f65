// Package testutil holds fixtures shared by logcheck tests: growing log
// files, config files and polling helpers.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// LogFixture is a log file on disk that tests append to, truncate and rotate.
type LogFixture struct {
	t    *testing.T
	path string
	eol  string
}

// NewLogFixture creates an empty log file named name in a fresh temp dir.
func NewLogFixture(t *testing.T, name string) *LogFixture {
	t.Helper()
	f := &LogFixture{t: t, path: filepath.Join(t.TempDir(), name), eol: "\n"}
	f.write(os.O_CREATE|os.O_TRUNC|os.O_WRONLY, "")
	return f
}

// WithCRLF makes later appends end lines with "\r\n".
func (f *LogFixture) WithCRLF() *LogFixture {
	f.eol = "\r\n"
	return f
}

// Path returns the file path.
func (f *LogFixture) Path() string {
	return f.path
}

// Dir returns the directory holding the file.
func (f *LogFixture) Dir() string {
	return filepath.Dir(f.path)
}

// Append adds complete lines.
func (f *LogFixture) Append(lines ...string) *LogFixture {
	f.t.Helper()
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString(f.eol)
	}
	f.write(os.O_APPEND|os.O_WRONLY, b.String())
	return f
}

// AppendPartial adds text without a line terminator.
func (f *LogFixture) AppendPartial(text string) *LogFixture {
	f.t.Helper()
	f.write(os.O_APPEND|os.O_WRONLY, text)
	return f
}

// Rotate moves the file to <path>.1 and starts a new one holding lines.
func (f *LogFixture) Rotate(lines ...string) *LogFixture {
	f.t.Helper()
	if err := os.Rename(f.path, f.path+".1"); err != nil {
		f.t.Fatalf("failed to rotate %s: %v", f.path, err)
	}
	f.write(os.O_CREATE|os.O_TRUNC|os.O_WRONLY, "")
	return f.Append(lines...)
}

// Size returns the current file size.
func (f *LogFixture) Size() int64 {
	f.t.Helper()
	info, err := os.Stat(f.path)
	if err != nil {
		f.t.Fatalf("failed to stat %s: %v", f.path, err)
	}
	return info.Size()
}

func (f *LogFixture) write(flag int, content string) {
	f.t.Helper()
	file, err := os.OpenFile(f.path, flag, 0644)
	if err != nil {
		f.t.Fatalf("failed to open %s: %v", f.path, err)
	}
	defer file.Close()
	if _, err := file.WriteString(content); err != nil {
		f.t.Fatalf("failed to write %s: %v", f.path, err)
	}
}

// ConfigFile writes a check configuration file with the given name (the
// extension picks the format) and body.
func ConfigFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to create config file: %v", err)
	}
	return path
}

// Eventually retries condition until it returns true or timeout passes.
func Eventually(t *testing.T, condition func() bool, timeout, interval time.Duration, msgAndArgs ...interface{}) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(interval)
	}
	if len(msgAndArgs) > 0 {
		t.Fatalf(msgAndArgs[0].(string), msgAndArgs[1:]...)
	} else {
		t.Fatal("condition not met within timeout")
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	if err != nil {
		if len(msgAndArgs) > 0 {
			t.Fatalf("%v: %v", fmt.Sprintf(msgAndArgs[0].(string), msgAndArgs[1:]...), err)
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}
