package integration

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/holon-run/coverbot/pkg/cli"
)

func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"coverbot": cli.Main,
	}))
}

// fakeGitHub accepts issue comments and remembers their bodies.
type fakeGitHub struct {
	mu       sync.Mutex
	comments []string
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/comments") {
		http.NotFound(w, r)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.comments = append(f.comments, string(body))
	id := len(f.comments)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte(`{"id": ` + strconv.Itoa(id) + `}`))
}

func (f *fakeGitHub) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.comments)
}

func (f *fakeGitHub) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.comments) == 0 {
		return ""
	}
	return f.comments[len(f.comments)-1]
}

type serverKey struct{}

func TestScript(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata",
		Setup: func(env *testscript.Env) error {
			gh := &fakeGitHub{}
			srv := httptest.NewServer(gh)
			env.Defer(srv.Close)
			env.Values[serverKey{}] = gh

			env.Setenv("GITHUB_API_URL", srv.URL)
			env.Setenv("GITHUB_REPOSITORY", "acme/widgets")
			env.Setenv("GITHUB_TOKEN", "test-token")
			return nil
		},
		Cmds: map[string]func(ts *testscript.TestScript, neg bool, args []string){
			// comments N asserts how many comments the fake server received.
			"comments": func(ts *testscript.TestScript, neg bool, args []string) {
				if len(args) != 1 {
					ts.Fatalf("usage: comments N")
				}
				want, err := strconv.Atoi(args[0])
				ts.Check(err)
				got := ts.Value(serverKey{}).(*fakeGitHub).count()
				if (got == want) == neg {
					ts.Fatalf("got %d comments, want %d", got, want)
				}
			},
			// lastcomment PATTERN asserts the newest comment contains PATTERN.
			"lastcomment": func(ts *testscript.TestScript, neg bool, args []string) {
				if len(args) != 1 {
					ts.Fatalf("usage: lastcomment TEXT")
				}
				body := ts.Value(serverKey{}).(*fakeGitHub).last()
				if strings.Contains(body, args[0]) == neg {
					ts.Fatalf("last comment %q, want it to contain %q (negated: %v)", body, args[0], neg)
				}
			},
		},
	})
}
