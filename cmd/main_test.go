package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/dkletran/cloudsearch-admin/pkg/gcp"
)

func testOptions(srv *httptest.Server) []option.ClientOption {
	return []option.ClientOption{
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL + "/"),
	}
}

func stubIdentityAPI(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	orig := newIdentityAPI
	t.Cleanup(func() { newIdentityAPI = orig })
	newIdentityAPI = func(ctx context.Context, _ string) (gcp.IdentityAPI, error) {
		return gcp.NewIdentityAPI(ctx, testOptions(srv)...)
	}
}

func stubSearchAPI(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	orig := newSearchAPI
	t.Cleanup(func() { newSearchAPI = orig })
	newSearchAPI = func(ctx context.Context, _ string) (gcp.SearchAPI, error) {
		return gcp.NewSearchAPI(ctx, testOptions(srv)...)
	}
}

func run(t *testing.T, args ...string) (int, string) {
	t.Helper()
	var out bytes.Buffer
	code := execute(context.Background(), args, &out)
	return code, out.String()
}

func identityHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/v1/groups" && r.URL.Query().Get("pageToken") == "":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"groups":        []map[string]any{{"name": "groups/1", "displayName": "Engineering"}},
			"nextPageToken": "T1",
		})
	case r.URL.Path == "/v1/groups" && r.URL.Query().Get("pageToken") == "T1":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"groups": []map[string]any{{"name": "groups/2", "displayName": "Sales"}},
		})
	case r.URL.Path == "/v1/groups/1/memberships":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"memberships": []map[string]any{{
				"name":               "groups/1/memberships/a",
				"preferredMemberKey": map[string]any{"id": "alice@example.com"},
				"type":               "USER",
			}},
		})
	case r.URL.Path == "/v1/groups/2/memberships":
		_ = json.NewEncoder(w).Encode(map[string]any{})
	case r.URL.Path == "/v1/groups/1":
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "groups/1", "displayName": "Engineering"})
	default:
		http.NotFound(w, r)
	}
}

func TestGroupsList(t *testing.T) {
	stubIdentityAPI(t, identityHandler)

	code, out := run(t, "groups", "list", "--service_account_file", "sa.json", "--identitysources", "src")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "List groups - START")
	assert.Contains(t, out, "Group: groups/1 DisplayName: Engineering")
	assert.Contains(t, out, "Group: groups/2 DisplayName: Sales")
	assert.Contains(t, out, "List groups - END")
	assert.Less(t, strings.Index(out, "groups/1"), strings.Index(out, "groups/2"))
}

func TestGroupsList_SnapshotAndExport(t *testing.T) {
	stubIdentityAPI(t, identityHandler)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "snapshot.db")
	exportDir := filepath.Join(dir, "export")

	code, out := run(t, "groups", "list",
		"--service_account_file", "sa.json",
		"--identitysources", "src",
		"--with_memberships",
		"--sqlite_file", dbPath,
	)
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "Membership: groups/1/memberships/a Member: alice@example.com Type: USER")

	code, out = run(t, "export", "--sqlite_file", dbPath, "--export_dir", exportDir)
	require.Equal(t, 0, code, out)

	groups, err := os.ReadFile(filepath.Join(exportDir, "identity_group.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(groups), "groups/1,Engineering")
	assert.Contains(t, string(groups), "groups/2,Sales")

	memberships, err := os.ReadFile(filepath.Join(exportDir, "membership.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(memberships), "groups/1/memberships/a,groups/1,alice@example.com,USER")
}

func TestGroupsList_APIFailure(t *testing.T) {
	stubIdentityAPI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pageToken") == "T1" {
			http.Error(w, `{"error":{"code":503,"message":"unavailable"}}`, http.StatusServiceUnavailable)
			return
		}
		identityHandler(w, r)
	})

	code, out := run(t, "groups", "list", "--service_account_file", "sa.json", "--identitysources", "src")
	assert.Equal(t, 6, code)
	assert.Contains(t, out, "ApiError")
	assert.NotContains(t, out, "Group: groups/1")
	assert.NotContains(t, out, "List groups - END")
}

func TestGroupsGetAndMemberships(t *testing.T) {
	stubIdentityAPI(t, identityHandler)

	code, out := run(t, "groups", "get", "--service_account_file", "sa.json", "--group_id", "1")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "Engineering")

	code, out = run(t, "groups", "memberships", "--service_account_file", "sa.json", "--group_id", "groups/1")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "alice@example.com")
}

func TestGroupsList_MissingFlags(t *testing.T) {
	code, out := run(t, "groups", "list", "--service_account_file", "sa.json")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "identitysources")
}

func TestGroupsList_AuthError(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.json")
	code, out := run(t, "groups", "list", "--service_account_file", missing, "--identitysources", "src")
	assert.Equal(t, 3, code)
	assert.Contains(t, out, "AuthError")
}

type recordedUpdate struct {
	body map[string]any
}

func searchHandler(rec *recordedUpdate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/indexing/datasources/ds1/schema" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPut {
			data, _ := io.ReadAll(r.Body)
			rec.body = map[string]any{}
			_ = json.Unmarshal(data, &rec.body)
			_, _ = io.WriteString(w, `{"name":"datasources/ds1/operations/1","done":true}`)
			return
		}
		_, _ = io.WriteString(w, `{"objectDefinitions":[{"name":"ticket"}]}`)
	}
}

func TestSchemaUpdate(t *testing.T) {
	rec := &recordedUpdate{}
	stubSearchAPI(t, searchHandler(rec))

	schemaPath := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(schemaPath, []byte(`{"foo": "bar"}`), 0o600))

	code, out := run(t, "schema", "update", "--service_account_file", "sa.json", "--datasources", "ds1", "--schema_json", schemaPath)
	require.Equal(t, 0, code, out)
	assert.Equal(t, map[string]any{"schema": map[string]any{"foo": "bar"}}, rec.body)
	assert.Contains(t, out, "Updating schema - START")
	assert.Contains(t, out, "ticket")
	assert.Contains(t, out, "Updating schema - END")
}

func TestSchemaUpdate_MissingFile(t *testing.T) {
	rec := &recordedUpdate{}
	stubSearchAPI(t, searchHandler(rec))

	code, out := run(t, "schema", "update",
		"--service_account_file", "sa.json",
		"--datasources", "ds1",
		"--schema_json", filepath.Join(t.TempDir(), "missing.json"),
	)
	assert.Equal(t, 4, code)
	assert.Contains(t, out, "IOError")
	assert.Nil(t, rec.body)
}

func TestSchemaUpdate_ParseError(t *testing.T) {
	stubSearchAPI(t, searchHandler(&recordedUpdate{}))
	schemaPath := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(schemaPath, []byte(`{`), 0o600))

	code, out := run(t, "schema", "update", "--service_account_file", "sa.json", "--datasources", "ds1", "--schema_json", schemaPath)
	assert.Equal(t, 5, code)
	assert.Contains(t, out, "ParseError")
}

func TestSchemaGet(t *testing.T) {
	stubSearchAPI(t, searchHandler(&recordedUpdate{}))

	code, out := run(t, "--log_format", "json", "schema", "get", "--service_account_file", "sa.json", "--datasources", "ds1")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, `"datasource":"datasources/ds1"`)
}

func TestInvalidLogLevel(t *testing.T) {
	code, _ := run(t, "--log_level", "chatty", "export")
	assert.Equal(t, 1, code)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1, exitCode(io.EOF))
	assert.Equal(t, 3, exitCode(&gcp.Error{Kind: gcp.KindAuth}))
	assert.Equal(t, 6, exitCode(&gcp.Error{Kind: gcp.KindAPI}))
}

func TestSchemaUpdate_AuthError(t *testing.T) {
	schemaPath := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(schemaPath, []byte(`{}`), 0o600))

	code, out := run(t, "schema", "update",
		"--service_account_file", filepath.Join(t.TempDir(), "missing.json"),
		"--datasources", "ds1",
		"--schema_json", schemaPath,
	)
	assert.Equal(t, 3, code)
	assert.Contains(t, out, "AuthError")
	assert.NotContains(t, out, "Updating schema - START")
}

func TestSchemaUpdate_APIErrors(t *testing.T) {
	tests := []struct {
		name     string
		failOn   string
		wantSeen string
	}{
		{"update rejected", http.MethodPut, "update schema of datasources/ds1"},
		{"verification fails", http.MethodGet, "get schema of datasources/ds1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordedUpdate{}
			ok := searchHandler(rec)
			stubSearchAPI(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method == tt.failOn {
					w.WriteHeader(http.StatusBadRequest)
					_, _ = io.WriteString(w, `{"error":{"code":400,"message":"rejected"}}`)
					return
				}
				ok(w, r)
			})
			schemaPath := filepath.Join(t.TempDir(), "schema.json")
			require.NoError(t, os.WriteFile(schemaPath, []byte(`{}`), 0o600))

			code, out := run(t, "schema", "update", "--service_account_file", "sa.json", "--datasources", "ds1", "--schema_json", schemaPath)
			assert.Equal(t, 6, code)
			assert.Contains(t, out, "ApiError")
			assert.Contains(t, out, tt.wantSeen)
			assert.NotContains(t, out, "Updating schema - END")
		})
	}
}

func TestSchemaGet_APIError(t *testing.T) {
	stubSearchAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":404,"message":"no such datasource"}}`)
	})

	code, out := run(t, "schema", "get", "--service_account_file", "sa.json", "--datasources", "ds1")
	assert.Equal(t, 6, code)
	assert.Contains(t, out, "no such datasource")
}
