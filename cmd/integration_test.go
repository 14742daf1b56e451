package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/pflag"
)

// platform is an in-memory stand-in for the Q-Storm backend.
type platform struct {
	mu       sync.Mutex
	nextID   int
	datasets map[string][]map[string]any // session id -> datasets
	bearer   string
}

func newPlatform(t *testing.T) *httptest.Server {
	t.Helper()
	p := &platform{nextID: 60, datasets: map[string][]map[string]any{}}
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
	})
	mux.HandleFunc("POST /v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("username") != "hanako" || r.FormValue("password") != "secret-pw" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Incorrect username or password"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "tok-123", "token_type": "bearer", "session_id": 900})
	})
	mux.HandleFunc("GET /v1/data/sessions", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.bearer = r.Header.Get("Authorization")
		p.mu.Unlock()
		writeJSON(w, http.StatusOK, []map[string]any{{"id": 900, "created_at": "2024-05-01T09:00:00"}, {"id": 901}})
	})
	mux.HandleFunc("POST /v1/data/upload", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
			return
		}
		sid := r.FormValue("session_id")
		if sid == "" {
			sid = "501"
		}
		p.mu.Lock()
		p.nextID++
		id := p.nextID
		p.datasets[sid] = append(p.datasets[sid], map[string]any{"id": id, "name": r.FormValue("name"), "created_at": "2024-05-01T09:00:00"})
		p.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"session_id": sid, "dataset_id": id, "rows": 2,
			"columns": []string{"Date", "Total_Sales"},
			"preview": []map[string]any{{"Date": "2024-01-01", "Total_Sales": 10}},
		})
	})
	mux.HandleFunc("GET /v1/data/datasets", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		list := p.datasets[r.URL.Query().Get("session_id")]
		if list == nil {
			list = []map[string]any{}
		}
		writeJSON(w, http.StatusOK, list)
	})
	mux.HandleFunc("PATCH /v1/data/datasets/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name string `json:"name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		p.mu.Lock()
		defer p.mu.Unlock()
		for _, list := range p.datasets {
			for _, d := range list {
				if d["name"] == body.Name {
					writeJSON(w, http.StatusConflict, map[string]any{"detail": "Dataset name already exists"})
					return
				}
			}
			for _, d := range list {
				if jsonID(d["id"]) == r.PathValue("id") {
					d["name"] = body.Name
					writeJSON(w, http.StatusOK, map[string]any{"id": d["id"], "name": body.Name})
					return
				}
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Dataset not found"})
	})
	mux.HandleFunc("POST /v1/analysis/timeseries", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"timestamp": []string{"2024-01-31"},
			"series":    []map[string]any{{"name": "Total_Sales", "values": []float64{10}}},
		})
	})
	mux.HandleFunc("POST /v1/analysis/pareto", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"data":  []map[string]any{{"category": "food", "value": 10}},
			"total": 10, "vital_few_threshold": 1,
		})
	})
	mux.HandleFunc("POST /v1/analysis/histogram", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": "histogram failed"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func jsonID(v any) string {
	b, _ := json.Marshal(v)
	return strings.Trim(string(b), `"`)
}

// setupHome isolates config and state under a temp HOME pointed at srv.
func setupHome(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("QSTORM_BASE_URL", srv.URL)
	t.Setenv("QSTORM_RETRY_MAX_ATTEMPTS", "1")
	t.Setenv("QSTORM_LOCALE", "en")
	return home
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	// Reset sticky flag values and Changed state across invocations
	reset := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(fl *pflag.Flag) {
			_ = fl.Value.Set(fl.DefValue)
			fl.Changed = false
		})
	}
	reset(rootCmd.PersistentFlags())
	for _, c := range rootCmd.Commands() {
		reset(c.Flags())
		for _, sub := range c.Commands() {
			reset(sub.Flags())
		}
	}
	cfg = nil
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, "", args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

func writeCSV(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("Date,Total_Sales\n2024-01-01,10\n2024-01-02,12\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestCLI_Upload_Datasets_Analyze(t *testing.T) {
	srv := newPlatform(t)
	home := setupHome(t, srv)
	csv := writeCSV(t, home, "sales.csv")

	out := runCmd(t, "upload", csv)
	if !strings.Contains(out, "Uploaded dataset 61 to session 501") {
		t.Fatalf("unexpected upload output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(home, ".qstorm", "workspace.yaml")); err != nil {
		t.Fatalf("workspace not saved: %v", err)
	}

	// the next invocation picks up the anonymous session from the workspace
	out = runCmd(t, "datasets")
	if !strings.Contains(out, "sales") || !strings.Contains(out, "61") {
		t.Fatalf("unexpected datasets output:\n%s", out)
	}

	out = runCmd(t, "upload", writeCSV(t, home, "stock.csv"))
	if !strings.Contains(out, "session 501") {
		t.Fatalf("second upload left the session:\n%s", out)
	}
	runCmd(t, "datasets", "use", "61")

	// the histogram step fails: earlier results are printed, then the error
	out, err := execute(t, "", "analyze", "--agg", "weekly")
	if err == nil {
		t.Fatalf("expected histogram failure")
	}
	if got := displayError(err); got != "histogram failed" {
		t.Fatalf("unexpected mapped error: %q", got)
	}
	if !strings.Contains(out, "Time series") || !strings.Contains(out, "Pareto") || strings.Contains(out, "Histogram") {
		t.Fatalf("unexpected analyze output:\n%s", out)
	}

	out = runCmd(t, "status")
	if !strings.Contains(out, "session:  501 (anonymous)") || !strings.Contains(out, "aggregation=weekly") {
		t.Fatalf("unexpected status output:\n%s", out)
	}
}

func TestCLI_RenameConflictIsMapped(t *testing.T) {
	srv := newPlatform(t)
	home := setupHome(t, srv)
	runCmd(t, "upload", writeCSV(t, home, "sales.csv"))
	runCmd(t, "upload", writeCSV(t, home, "stock.csv"))

	_, err := execute(t, "", "datasets", "rename", "61", "stock")
	if err == nil {
		t.Fatalf("expected name conflict")
	}
	if got := displayError(err); got != "A dataset with this name already exists in this session" {
		t.Fatalf("unexpected mapped error: %q", got)
	}

	out := runCmd(t, "datasets", "rename", "61", "sales-2024")
	if !strings.Contains(out, `"sales-2024"`) {
		t.Fatalf("unexpected rename output:\n%s", out)
	}
	out = runCmd(t, "datasets", "-o", "json")
	var list []map[string]any
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("datasets json: %v\n%s", err, out)
	}
	if len(list) != 2 || list[0]["name"] != "sales-2024" {
		t.Fatalf("unexpected catalog: %v", list)
	}
}

func TestCLI_LoginSessionsLogout(t *testing.T) {
	srv := newPlatform(t)
	home := setupHome(t, srv)
	runCmd(t, "upload", writeCSV(t, home, "sales.csv"))

	if _, err := execute(t, "wrong\n", "login", "-u", "hanako", "--password-stdin"); err == nil {
		t.Fatalf("expected login failure")
	}

	out, err := execute(t, "secret-pw\n", "login", "-u", "hanako", "--password-stdin")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "Logged in as hanako (session 900)") {
		t.Fatalf("unexpected login output:\n%s", out)
	}
	credPath := filepath.Join(home, ".qstorm", "credentials.yaml")
	info, err := os.Stat(credPath)
	if err != nil {
		t.Fatalf("credentials not stored: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("credentials mode = %v", info.Mode().Perm())
	}

	// login wins over the anonymous session from the earlier upload
	out = runCmd(t, "status")
	if !strings.Contains(out, "session:  900 (authenticated)") || !strings.Contains(out, "login:    hanako") {
		t.Fatalf("unexpected status output:\n%s", out)
	}

	out = runCmd(t, "sessions")
	if !strings.Contains(out, "901") {
		t.Fatalf("unexpected sessions output:\n%s", out)
	}

	runCmd(t, "sessions", "use", "901")
	out = runCmd(t, "status")
	if !strings.Contains(out, "session:  901 (authenticated)") {
		t.Fatalf("picked session not kept:\n%s", out)
	}

	runCmd(t, "logout")
	b, err := os.ReadFile(credPath)
	if err == nil && strings.Contains(string(b), "tok-123") {
		t.Fatalf("token still stored after logout:\n%s", b)
	}
	out = runCmd(t, "status")
	if !strings.Contains(out, "(not logged in)") || !strings.Contains(out, "session:  (none") {
		t.Fatalf("unexpected status after logout:\n%s", out)
	}
}

func TestCLI_ValidationNeverReachesBackend(t *testing.T) {
	srv := newPlatform(t)
	home := setupHome(t, srv)
	txt := filepath.Join(home, "notes.txt")
	if err := os.WriteFile(txt, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := execute(t, "", "upload", txt)
	if err == nil {
		t.Fatalf("expected unsupported file error")
	}
	if _, err := execute(t, "", "analyze"); err == nil {
		t.Fatalf("expected missing session error")
	}
	if _, err := execute(t, "\n", "login", "-u", "hanako", "--password-stdin"); err == nil {
		t.Fatalf("expected empty password error")
	} else if got := displayError(err); !strings.Contains(got, "Password is required") {
		t.Fatalf("unexpected validation message: %q", got)
	}
}

func TestCLI_ConfigSetShow(t *testing.T) {
	srv := newPlatform(t)
	setupHome(t, srv)
	runCmd(t, "config", "set", "locale", "ja")
	runCmd(t, "config", "set", "rate_limit_rps", "5")
	if _, err := execute(t, "", "config", "set", "output", "yaml"); err == nil {
		t.Fatalf("expected invalid output error")
	}
	// drop the env override so the saved value shows
	os.Unsetenv("QSTORM_LOCALE")
	out := runCmd(t, "config", "show")
	if !strings.Contains(out, "locale: ja") || !strings.Contains(out, "rate_limit_rps: 5.00") {
		t.Fatalf("unexpected config:\n%s", out)
	}
}
