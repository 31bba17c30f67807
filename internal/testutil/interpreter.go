package testutil

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

// FakeInterpreterEnv, when set to "1", turns the test binary into the fake
// interpreter. See MaybeRunFakeInterpreter.
const FakeInterpreterEnv = "DORPCHECK_FAKE_INTERPRETER"

// MaybeRunFakeInterpreter runs the fake interpreter and exits if the process
// was started as one. Call it first thing in TestMain:
//
//	func TestMain(m *testing.M) {
//	    testutil.MaybeRunFakeInterpreter()
//	    os.Exit(m.Run())
//	}
func MaybeRunFakeInterpreter() {
	if os.Getenv(FakeInterpreterEnv) != "1" {
		return
	}
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: interpreter <fixture>")
		os.Exit(2)
	}
	data, err := os.ReadFile(os.Args[len(os.Args)-1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	os.Exit(Interpret(string(data), os.Stdout, os.Stderr))
}

// FakeInterpreter returns the path of a program that interprets fixtures with
// Interpret. The program is the running test binary; the calling package's
// TestMain must call MaybeRunFakeInterpreter.
//
// The environment variable that activates it is set for the duration of the
// test, so the test must not run in parallel.
func FakeInterpreter(t *testing.T) string {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable() failed: %v", err)
	}
	t.Setenv(FakeInterpreterEnv, "1")
	return exe
}

// Interpret executes a tiny line-oriented fixture language and returns the
// process exit code.
//
//	print <text>    writes text and a newline to stdout
//	write <text>    writes text to stdout without a newline
//	eprint <text>   writes text and a newline to stderr
//	sleep <dur>     sleeps for a time.ParseDuration value
//	exit <code>     stops with the given exit code
//	pwd             prints the working directory
//	getenv <name>   prints the value of an environment variable
//	<a>+<b>         prints the integer sum
//	# ...           comment (expected-output annotation)
//
// Blank lines are ignored. Anything else writes "error: parse" to stderr and
// exits with code 1.
func Interpret(text string, stdout, stderr io.Writer) int {
	out := bufio.NewWriter(stdout)
	defer out.Flush()

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		verb, arg, _ := strings.Cut(line, " ")
		switch verb {
		case "print":
			fmt.Fprintln(out, arg)
		case "write":
			fmt.Fprint(out, arg)
		case "eprint":
			out.Flush()
			fmt.Fprintln(stderr, arg)
		case "sleep":
			d, err := time.ParseDuration(arg)
			if err != nil {
				out.Flush()
				fmt.Fprintln(stderr, "error: bad duration")
				return 1
			}
			out.Flush()
			time.Sleep(d)
		case "pwd":
			wd, err := os.Getwd()
			if err != nil {
				out.Flush()
				fmt.Fprintln(stderr, "error:", err)
				return 1
			}
			fmt.Fprintln(out, wd)
		case "getenv":
			fmt.Fprintln(out, os.Getenv(arg))
		case "exit":
			code, err := strconv.Atoi(arg)
			if err != nil {
				code = 1
			}
			return code
		default:
			sum, ok := add(line)
			if !ok {
				out.Flush()
				fmt.Fprintln(stderr, "error: parse")
				return 1
			}
			fmt.Fprintln(out, sum)
		}
	}
	return 0
}

// add evaluates "<a>+<b>".
func add(expr string) (int, bool) {
	left, right, found := strings.Cut(expr, "+")
	if !found {
		return 0, false
	}
	a, err := strconv.Atoi(strings.TrimSpace(left))
	if err != nil {
		return 0, false
	}
	b, err := strconv.Atoi(strings.TrimSpace(right))
	if err != nil {
		return 0, false
	}
	return a + b, true
}
